package assetstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weirwood/scry/internal/config"
	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

// Minimal 1x1 PNG, so content sniffing sees a real image.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
	0x44, 0xae, 0x42, 0x60, 0x82,
}

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := New(config.AssetStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": dir},
	})
	require.NoError(t, err)
	return store, dir
}

func TestLocalStore_SaveOpenRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	rel, err := store.Save(ctx, "abc-123", pngBytes)
	require.NoError(t, err)
	require.Equal(t, "image_cache/img_abc-123.png", rel)

	_, err = os.Stat(filepath.Join(dir, "image_cache", "img_abc-123.png"))
	require.NoError(t, err)

	got, err := store.Open(ctx, rel)
	require.NoError(t, err)
	require.Equal(t, pngBytes, got)
}

func TestLocalStore_OpenMissingIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Open(context.Background(), "image_cache/img_missing.png")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestLocalStore_StatReflectsDisk(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	rel, err := store.Save(ctx, "id1", pngBytes)
	require.NoError(t, err)

	ok, err := store.Stat(ctx, rel)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, filepath.FromSlash(rel))))

	ok, err = store.Stat(ctx, rel)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalStore_RejectsEscapingPaths(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, bad := range []string{"", "../outside.png", "image_cache/../../etc/passwd", "/etc/passwd"} {
		_, err := store.Open(ctx, bad)
		require.ErrorIs(t, err, appErr.ErrInvalid, "path %q", bad)
	}
}

func TestLocalStore_Stats(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Files)
	require.Equal(t, int64(0), stats.Bytes)

	_, err = store.Save(ctx, "a", pngBytes)
	require.NoError(t, err)
	_, err = store.Save(ctx, "b", pngBytes)
	require.NoError(t, err)

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Files)
	require.Equal(t, int64(2*len(pngBytes)), stats.Bytes)
}

func TestLocalStore_SaveSameIDOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rel1, err := store.Save(ctx, "same", []byte("first"))
	require.NoError(t, err)
	rel2, err := store.Save(ctx, "same", []byte("second"))
	require.NoError(t, err)
	require.Equal(t, rel1, rel2)

	got, err := store.Open(ctx, rel1)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := EncodeDataURI(pngBytes)
	require.Contains(t, uri, "data:image/png;base64,")

	back, err := DecodeDataURI(uri)
	require.NoError(t, err)
	require.Equal(t, pngBytes, back)
}

func TestDecodeDataURI_BareBase64(t *testing.T) {
	back, err := DecodeDataURI("AQIDBA==")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, back)
}

func TestDecodeDataURI_Malformed(t *testing.T) {
	_, err := DecodeDataURI("data:image/png;base64")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = DecodeDataURI("not valid base64 at all!!!")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
