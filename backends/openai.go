package backends

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIImages generates through the OpenAI images API. The API has no seed
// or step controls; those parameters are ignored.
type OpenAIImages struct {
	client *openai.Client
	model  string
}

// OpenAIType is the "openai" backend type.
func OpenAIType() BackendType {
	return BackendType{
		ID:          "openai",
		Name:        "OpenAI Images",
		Description: "OpenAI-compatible /v1/images/generations endpoint",
		Settings: []SettingInfo{
			{Name: "api_key", Description: "API key (required)"},
			{Name: "base_url", Description: "API base URL", Default: "https://api.openai.com/v1"},
			{Name: "model", Description: "Image model", Default: openai.CreateImageModelDallE3},
			{Name: "timeout", Description: "Per-call HTTP timeout", Default: "5m"},
		},
		New: func(s Settings) (Backend, error) { return NewOpenAIImages(s) },
	}
}

// NewOpenAIImages builds the client. An empty api_key is rejected so the
// backend shows up as invalid instead of failing every call.
func NewOpenAIImages(s Settings) (*OpenAIImages, error) {
	key := s.String("api_key", "")
	if key == "" {
		return nil, fmt.Errorf("%w: api_key is required", ErrInvalidSettings)
	}
	timeout, err := s.Duration("timeout", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = s.String("base_url", "https://api.openai.com/v1")
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIImages{
		client: openai.NewClientWithConfig(cfg),
		model:  s.String("model", openai.CreateImageModelDallE3),
	}, nil
}

// Generate requests one image of the given size as base64 JSON.
func (b *OpenAIImages) Generate(ctx context.Context, params Params) ([]Image, error) {
	req := openai.ImageRequest{
		Prompt:         params.Prompt,
		Model:          b.model,
		N:              1,
		Size:           fmt.Sprintf("%dx%d", params.Width, params.Height),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if b.model == openai.CreateImageModelDallE3 {
		req.Style = openai.CreateImageStyleVivid
	}

	resp, err := b.client.CreateImage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai returned no images", ErrGenerationFailed)
	}

	out := make([]Image, 0, len(resp.Data))
	for i, d := range resp.Data {
		if d.B64JSON == "" {
			return nil, fmt.Errorf("%w: openai image %d has no b64_json payload", ErrGenerationFailed, i)
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("%w: openai image %d: %v", ErrGenerationFailed, i, err)
		}
		out = append(out, Image{Data: data, MIMEType: "image/png"})
	}
	return out, nil
}
