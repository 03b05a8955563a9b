package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const defaultFreepikBaseURL = "https://api.freepik.com/v1/ai/text-to-image"

type freepikConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type freepikProvider struct {
	apiKey  string
	baseURL string
}

type freepikRequest struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt"`
	GuidanceScale  int            `json:"guidance_scale"`
	Seed           int            `json:"seed"`
	NumImages      int            `json:"num_images"`
	Image          freepikImage   `json:"image"`
	Styling        freepikStyling `json:"styling"`
	FilterNSFW     bool           `json:"filter_nsfw"`
}

type freepikImage struct {
	Size string `json:"size"`
}

type freepikStyling struct {
	Style   string         `json:"style"`
	Effects freepikEffects `json:"effects"`
	Colors  []freepikColor `json:"colors"`
}

type freepikEffects struct {
	Color     string `json:"color"`
	Lightning string `json:"lightning"`
	Framing   string `json:"framing"`
}

type freepikColor struct {
	Color  string `json:"color"`
	Weight int    `json:"weight"`
}

type freepikResponse struct {
	Data []struct {
		Base64   string `json:"base64"`
		URL      string `json:"url"`
		ImageURL string `json:"image_url"`
	} `json:"data"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url"`
	Images   []struct {
		URL      string `json:"url"`
		ImageURL string `json:"image_url"`
	} `json:"images"`
}

type freepikError struct {
	Message string `json:"message"`
	Err     string `json:"error"`
}

func (p *freepikProvider) Name() string {
	return "freepik"
}

// Generate posts a fixed-seed text-to-image request. The classic endpoint
// does not take a model name, so model is ignored.
func (p *freepikProvider) Generate(ctx context.Context, model string, prompt string, negativePrompt string) ([]byte, error) {
	_ = model
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	reqBody := freepikRequest{
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		GuidanceScale:  2,
		Seed:           42,
		NumImages:      1,
		Image:          freepikImage{Size: "square_1_1"},
		Styling: freepikStyling{
			Style: "digital-art",
			Effects: freepikEffects{
				Color:     "dramatic",
				Lightning: "cinematic",
				Framing:   "cinematic",
			},
			Colors: []freepikColor{
				{Color: "#8B0000", Weight: 1},
				{Color: "#C9A961", Weight: 1},
			},
		},
		FilterNSFW: true,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-freepik-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		detail := strings.TrimSpace(string(body))
		var apiErr freepikError
		if err := json.Unmarshal(body, &apiErr); err == nil {
			if apiErr.Message != "" {
				detail = apiErr.Message
			} else if apiErr.Err != "" {
				detail = apiErr.Err
			}
		}
		return nil, fmt.Errorf("freepik request failed (%d): %s", resp.StatusCode, detail)
	}
	var out freepikResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return p.extractImage(ctx, &out)
}

// extractImage pulls the image bytes out of whichever of the documented
// response shapes the API answered with. Inline base64 is the common case;
// URL answers are fetched so callers always receive raw bytes.
func (p *freepikProvider) extractImage(ctx context.Context, out *freepikResponse) ([]byte, error) {
	if len(out.Data) > 0 {
		first := out.Data[0]
		if first.Base64 != "" {
			return decodeBase64Image(first.Base64)
		}
		if first.URL != "" {
			return p.download(ctx, first.URL)
		}
		if first.ImageURL != "" {
			return p.download(ctx, first.ImageURL)
		}
	}
	if out.URL != "" {
		return p.download(ctx, out.URL)
	}
	if out.ImageURL != "" {
		return p.download(ctx, out.ImageURL)
	}
	if len(out.Images) > 0 {
		if out.Images[0].URL != "" {
			return p.download(ctx, out.Images[0].URL)
		}
		if out.Images[0].ImageURL != "" {
			return p.download(ctx, out.Images[0].ImageURL)
		}
	}
	return nil, fmt.Errorf("freepik response has no image payload")
}

func (p *freepikProvider) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("download generated image: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:image") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode freepik image payload: %w", err)
	}
	return raw, nil
}

func createFreepikFactory(args interface{}) (IImageProvider, error) {
	cfg := &freepikConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("FREEPIK_API_KEY"))
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultFreepikBaseURL
	}
	return &freepikProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
	}, nil
}

func init() {
	RegisterImage("freepik", createFreepikFactory)
}
