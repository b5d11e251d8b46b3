package backends

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"
)

func TestPlaceholderGenerate(t *testing.T) {
	b, err := NewPlaceholder(Settings{"images": "2"})
	if err != nil {
		t.Fatalf("NewPlaceholder() failed: %v", err)
	}

	params := DefaultParams()
	params.Seed = 42
	params.Width, params.Height = 96, 64

	images, err := b.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("Generate() returned %d images, want 2", len(images))
	}
	for i, img := range images {
		decoded, err := png.Decode(bytes.NewReader(img.Data))
		if err != nil {
			t.Fatalf("image %d is not a PNG: %v", i, err)
		}
		if got := decoded.Bounds().Dx(); got != 96 {
			t.Errorf("image %d width = %d, want 96", i, got)
		}
		if got := decoded.Bounds().Dy(); got != 64 {
			t.Errorf("image %d height = %d, want 64", i, got)
		}
	}
	if bytes.Equal(images[0].Data, images[1].Data) {
		t.Error("images for different seeds are identical")
	}
}

func TestPlaceholderDeterministic(t *testing.T) {
	b, _ := NewPlaceholder(nil)
	params := DefaultParams()
	params.Seed = 7
	params.Width, params.Height = 32, 32

	first, err := b.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	second, err := b.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if !bytes.Equal(first[0].Data, second[0].Data) {
		t.Error("same seed produced different images")
	}
}

func TestPlaceholderRejectsSize(t *testing.T) {
	b, _ := NewPlaceholder(nil)
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 64},
		{"negative height", 64, -8},
		{"too large", 8192, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			params.Width, params.Height = tt.width, tt.height
			_, err := b.Generate(context.Background(), params)
			if !errors.Is(err, ErrGenerationFailed) {
				t.Errorf("Generate() error = %v, want ErrGenerationFailed", err)
			}
		})
	}
}

func TestPlaceholderDelayHonorsContext(t *testing.T) {
	b, err := NewPlaceholder(Settings{"delay": "5s"})
	if err != nil {
		t.Fatalf("NewPlaceholder() failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = b.Generate(ctx, DefaultParams())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Generate() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewPlaceholderInvalidSettings(t *testing.T) {
	for _, s := range []Settings{{"delay": "soon"}, {"images": "x"}, {"images": "0"}} {
		if _, err := NewPlaceholder(s); !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("NewPlaceholder(%v) error = %v, want ErrInvalidSettings", s, err)
		}
	}
}
