package backends

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const txt2imgPath = "/sdapi/v1/txt2img"

// SDAPI drives a Stable Diffusion web server that exposes the
// /sdapi/v1/txt2img JSON endpoint.
type SDAPI struct {
	client  *resty.Client
	address string
}

// SDAPIType is the "sdapi" backend type.
func SDAPIType() BackendType {
	return BackendType{
		ID:          "sdapi",
		Name:        "Stable Diffusion web API",
		Description: "Remote server exposing /sdapi/v1/txt2img",
		Settings: []SettingInfo{
			{Name: "address", Description: "Base URL of the server", Default: "http://127.0.0.1:7860"},
			{Name: "timeout", Description: "Per-call HTTP timeout", Default: "10m"},
			{Name: "api_key", Description: "Optional bearer token"},
		},
		New: func(s Settings) (Backend, error) { return NewSDAPI(s) },
	}
}

// NewSDAPI validates the settings and builds the HTTP client. It does not
// contact the server.
func NewSDAPI(s Settings) (*SDAPI, error) {
	address := strings.TrimRight(s.String("address", "http://127.0.0.1:7860"), "/")
	u, err := url.Parse(address)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: address %q must be an http(s) URL", ErrInvalidSettings, address)
	}
	timeout, err := s.Duration("timeout", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetBaseURL(address).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if key := s.String("api_key", ""); key != "" {
		client.SetAuthToken(key)
	}
	return &SDAPI{client: client, address: address}, nil
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Generate posts params and decodes the returned base64 images. Extra
// parameters are merged into the request body as-is. The reply is decoded as
// JSON whatever Content-Type the server or a proxy in front of it sets.
func (b *SDAPI) Generate(ctx context.Context, params Params) ([]Image, error) {
	body := map[string]any{}
	for k, v := range params.Extra {
		body[k] = v
	}
	body["prompt"] = params.Prompt
	body["negative_prompt"] = params.NegativePrompt
	body["seed"] = params.Seed
	body["steps"] = params.Steps
	body["cfg_scale"] = params.CFGScale
	body["width"] = params.Width
	body["height"] = params.Height
	body["batch_size"] = 1

	var result txt2imgResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		ForceContentType("application/json").
		Post(txt2imgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGenerationFailed, b.address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s returned %d: %s",
			ErrGenerationFailed, b.address, resp.StatusCode(), truncate(resp.String(), 200))
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("%w: %s returned no images", ErrGenerationFailed, b.address)
	}

	out := make([]Image, 0, len(result.Images))
	for i, encoded := range result.Images {
		// some servers prefix a data: header
		if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
			encoded = encoded[idx+1:]
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d is not valid base64: %v", ErrGenerationFailed, i, err)
		}
		out = append(out, Image{Data: data, MIMEType: "image/png"})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
