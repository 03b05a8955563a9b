package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/weirwood/scry/internal/ai"
	"github.com/weirwood/scry/internal/assetstore"
	"github.com/weirwood/scry/internal/cacheindex"
	"github.com/weirwood/scry/internal/config"
	"github.com/weirwood/scry/internal/handler"
	"github.com/weirwood/scry/internal/imagecache"
	"github.com/weirwood/scry/internal/metrics"
	"github.com/weirwood/scry/internal/middleware"
	"github.com/weirwood/scry/internal/pkg/errcode"
	"github.com/weirwood/scry/internal/service"
)

type testEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *testEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *testEmbedder) ModelName() string { return "test/embed" }

type testGenerator struct {
	data  []byte
	err   error
	calls int
}

func (g *testGenerator) Generate(_ context.Context, _ string, _ string) ([]byte, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.data, nil
}

var testImage = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
	0x44, 0xae, 0x42, 0x60, 0x82,
}

func setupRouter(t *testing.T, embedder ai.IEmbedder, generator ai.IImageGenerator) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store, err := assetstore.New(config.AssetStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": dir},
	})
	require.NoError(t, err)

	manager := ai.NewManager(embedder, generator, ai.ManagerConfig{})
	cacheMetrics := metrics.NewCacheMetrics()
	resolver := imagecache.NewResolver(
		cacheindex.New(filepath.Join(dir, "cache_metadata.json")),
		store,
		manager,
		cacheMetrics,
		0,
	)
	images := handler.NewImageHandler(service.NewImageService(resolver, manager))

	deps := handler.RouterDeps{
		Images:  images,
		Metrics: cacheMetrics.Handler(),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

type apiResult struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResult) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var result apiResult
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	}
	return resp, result
}

func TestResolveImageEndpoint(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{0.1, 0.9}}
	generator := &testGenerator{data: testImage}
	router := setupRouter(t, embedder, generator)

	resp, result := doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "a throne room", "style_notes": "dim torchlight"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, result.Code)
	require.Equal(t, false, result.Data["cached"])
	imageURL, _ := result.Data["image_url"].(string)
	require.True(t, strings.HasPrefix(imageURL, "data:image/png;base64,"))

	resp, result = doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "a throne room", "style_notes": "dim torchlight"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, true, result.Data["cached"])
	require.Equal(t, imageURL, result.Data["image_url"])
	require.Equal(t, 1, generator.calls)
}

func TestResolveImageValidation(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{1}}
	generator := &testGenerator{data: testImage}
	router := setupRouter(t, embedder, generator)

	resp, result := doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "   "}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrInvalid, result.Code)

	resp, result = doRequest(t, router, http.MethodPost, "/api/v1/images/resolve", `{not json`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrInvalid, result.Code)
	require.Equal(t, 0, generator.calls)
}

func TestResolveImageProviderUnavailable(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{1}}
	generator := &testGenerator{err: ai.ErrUnavailable}
	router := setupRouter(t, embedder, generator)

	resp, result := doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "a dragon over the bay"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrProviderUnavailable, result.Code)
}

func TestResolveImageGenerationFailure(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{1}}
	generator := &testGenerator{err: context.DeadlineExceeded}
	router := setupRouter(t, embedder, generator)

	resp, result := doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "a dragon over the bay"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrGenerationFailed, result.Code)
}

func TestCacheStatusEndpoint(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{0.4, 0.6}}
	generator := &testGenerator{data: testImage}
	router := setupRouter(t, embedder, generator)

	resp, result := doRequest(t, router, http.MethodGet, "/api/v1/cache/status", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, float64(0), result.Data["entries"])

	_, _ = doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "the kingsroad"}`)

	resp, result = doRequest(t, router, http.MethodGet, "/api/v1/cache/status", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, float64(1), result.Data["entries"])
	require.Equal(t, float64(1), result.Data["asset_files"])
	require.Equal(t, float64(len(testImage)), result.Data["asset_bytes"])
}

func TestHealthzEndpoint(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{1}}
	generator := &testGenerator{data: testImage}
	router := setupRouter(t, embedder, generator)

	resp, result := doRequest(t, router, http.MethodGet, "/api/v1/healthz", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, result.Code)
	require.Equal(t, "ok", result.Data["status"])
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	embedder := &testEmbedder{vector: []float32{1}}
	generator := &testGenerator{data: testImage}
	router := setupRouter(t, embedder, generator)

	_, _ = doRequest(t, router, http.MethodPost, "/api/v1/images/resolve",
		`{"art_description": "winterfell at dawn"}`)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "scry_imagecache_misses_total 1")
	require.Contains(t, resp.Body.String(), "scry_imagecache_hits_total 0")
}
