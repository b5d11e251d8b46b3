package backends

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder limits. Larger requests are rejected by the backend.
const (
	placeholderMaxSize = 4096
	placeholderTile    = 64
)

// Placeholder renders a deterministic seed-dependent gradient labelled with
// the seed. It needs no model and is used for development and tests.
type Placeholder struct {
	delay  time.Duration
	images int
}

// PlaceholderType is the "placeholder" backend type.
func PlaceholderType() BackendType {
	return BackendType{
		ID:          "placeholder",
		Name:        "Placeholder",
		Description: "Renders a seed-labelled gradient locally without a model",
		Settings: []SettingInfo{
			{Name: "delay", Description: "Simulated generation time", Default: "0s"},
			{Name: "images", Description: "Images returned per call", Default: "1"},
		},
		New: func(s Settings) (Backend, error) { return NewPlaceholder(s) },
	}
}

// NewPlaceholder builds a Placeholder from settings.
func NewPlaceholder(s Settings) (*Placeholder, error) {
	delay, err := s.Duration("delay", 0)
	if err != nil {
		return nil, err
	}
	images, err := s.Int("images", 1)
	if err != nil {
		return nil, err
	}
	if images < 1 {
		return nil, fmt.Errorf("%w: images must be at least 1", ErrInvalidSettings)
	}
	return &Placeholder{delay: delay, images: images}, nil
}

// Generate renders p.images PNGs of the requested size.
func (b *Placeholder) Generate(ctx context.Context, params Params) ([]Image, error) {
	if params.Width <= 0 || params.Height <= 0 ||
		params.Width > placeholderMaxSize || params.Height > placeholderMaxSize {
		return nil, fmt.Errorf("%w: unsupported size %dx%d", ErrGenerationFailed, params.Width, params.Height)
	}

	if b.delay > 0 {
		timer := time.NewTimer(b.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]Image, 0, b.images)
	for i := 0; i < b.images; i++ {
		data, err := renderPlaceholder(params, params.Seed+int64(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		out = append(out, Image{Data: data, MIMEType: "image/png"})
	}
	return out, nil
}

func renderPlaceholder(params Params, seed int64) ([]byte, error) {
	// small tile, scaled up so large requests stay cheap
	tile := image.NewRGBA(image.Rect(0, 0, placeholderTile, placeholderTile))
	r0, g0, b0 := seedColor(seed)
	for y := 0; y < placeholderTile; y++ {
		for x := 0; x < placeholderTile; x++ {
			tile.SetRGBA(x, y, color.RGBA{
				R: r0 + uint8(x*2),
				G: g0 + uint8(y*2),
				B: b0 + uint8((x+y)/2),
				A: 0xff,
			})
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, params.Width, params.Height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), tile, tile.Bounds(), draw.Src, nil)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 14),
	}
	d.DrawString(fmt.Sprintf("seed %d", seed))
	if params.Height > 32 {
		d.Dot = fixed.P(4, 30)
		d.DrawString(fmt.Sprintf("%d steps cfg %.1f", params.Steps, params.CFGScale))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// seedColor spreads seeds over the color cube with a 64-bit mix.
func seedColor(seed int64) (uint8, uint8, uint8) {
	x := uint64(seed)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return uint8(x), uint8(x >> 8), uint8(x >> 16)
}
