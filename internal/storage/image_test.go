package storage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProcessMessageImageOutputsJPEG(t *testing.T) {
	out, err := ProcessMessageImage(encodePNG(t, 100, 80))
	if err != nil {
		t.Fatalf("ProcessMessageImage: %v", err)
	}
	if detectFormat(out) != "jpeg" {
		t.Error("processed output is not JPEG")
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("small image was resized to %dx%d", b.Dx(), b.Dy())
	}
}

func TestProcessMessageImageDownscales(t *testing.T) {
	out, err := ProcessMessageImage(encodePNG(t, 3200, 1600))
	if err != nil {
		t.Fatalf("ProcessMessageImage: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() > messageImageMaxDim || b.Dy() > messageImageMaxDim {
		t.Errorf("output %dx%d exceeds max dimension %d", b.Dx(), b.Dy(), messageImageMaxDim)
	}
	// Aspect ratio survives the downscale.
	if b.Dx() != 1600 || b.Dy() != 800 {
		t.Errorf("output %dx%d, want 1600x800", b.Dx(), b.Dy())
	}
}

func TestProcessAvatarImageTighterCap(t *testing.T) {
	out, err := ProcessAvatarImage(encodePNG(t, 1024, 1024))
	if err != nil {
		t.Fatalf("ProcessAvatarImage: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != avatarMaxDim || b.Dy() != avatarMaxDim {
		t.Errorf("avatar output %dx%d, want %dx%d", b.Dx(), b.Dy(), avatarMaxDim, avatarMaxDim)
	}
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	if _, err := ProcessMessageImage([]byte("definitely not an image")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if _, err := ProcessMessageImage(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0}, "png"},
		{"webp", append([]byte("RIFF"), append([]byte{0, 0, 0, 0}, []byte("WEBP")...)...), "webp"},
		{"empty", nil, ""},
		{"text", []byte("hello"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.data); got != tt.want {
				t.Errorf("detectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		key     string
		want    string
		wantErr bool
	}{
		{"plain", "", "messages/1/a.jpg", "messages/1/a.jpg", false},
		{"prefixed", "media", "a.jpg", "media/a.jpg", false},
		{"leading slash", "", "/a.jpg", "a.jpg", false},
		{"traversal", "", "../etc/passwd", "", true},
		{"backslash", "", `a\b.jpg`, "", true},
		{"empty", "", "  ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeObjectKey(tt.prefix, tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}
