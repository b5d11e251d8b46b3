package backends

import (
	"context"
	"encoding/base64"
	"time"
)

// SeedRandom asks for a freshly drawn seed.
const SeedRandom int64 = -1

// Params are the generation parameters passed to a backend untouched.
// Range checks are the backend's job.
type Params struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt"`
	Seed           int64          `json:"seed"`
	Steps          int            `json:"steps"`
	CFGScale       float64        `json:"cfg_scale"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// DefaultParams mirrors the defaults of the public API: 512x512, 20 steps,
// CFG 7, random seed.
func DefaultParams() Params {
	return Params{
		Seed:     SeedRandom,
		Steps:    20,
		CFGScale: 7,
		Width:    512,
		Height:   512,
	}
}

// Clone returns a deep copy; nested maps and slices in Extra are copied too.
func (p Params) Clone() Params {
	out := p
	if p.Extra != nil {
		out.Extra = cloneMap(p.Extra)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

// Image is one encoded output of a backend.
type Image struct {
	Data     []byte
	MIMEType string
}

// Extension returns the file extension matching MIMEType.
func (i Image) Extension() string {
	switch i.MIMEType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// Base64 returns the standard base64 encoding of Data.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as an inline data: URL.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + i.Base64()
}

// Backend executes one generation call at a time.
type Backend interface {
	Generate(ctx context.Context, params Params) ([]Image, error)
}

// Lease is exclusive ownership of one backend for the duration of a call.
// Release must be safe to call more than once.
type Lease interface {
	ID() int
	Backend() Backend
	Release()
}

// LeasePool hands out leases. Lease fails with ErrLeaseTimeout when nothing
// frees up within timeout and with ErrNoValidBackends when the pool cannot
// serve any lease at all. When ctx ends first, Lease returns ctx's error.
type LeasePool interface {
	Lease(ctx context.Context, timeout time.Duration) (Lease, error)
}
