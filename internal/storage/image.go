package storage

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	MaxImageBytes = 8 << 20 // per-upload cap before decoding

	messageImageMaxDim = 1600
	avatarMaxDim       = 512
	jpegQuality        = 85
)

var ErrUnsupportedImage = errors.New("unsupported image format")

func detectFormat(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	default:
		return ""
	}
}

func decode(data []byte) (image.Image, error) {
	switch detectFormat(data) {
	case "jpeg":
		return jpeg.Decode(bytes.NewReader(data))
	case "png":
		return png.Decode(bytes.NewReader(data))
	case "webp":
		return webp.Decode(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedImage
	}
}

func scaleDown(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// processImage decodes JPEG/PNG/WebP, downscales to fit maxDim and
// re-encodes as JPEG. Always produces image/jpeg output.
func processImage(data []byte, maxDim int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	if len(data) > MaxImageBytes {
		return nil, errors.New("image too large")
	}
	src, err := decode(data)
	if err != nil {
		return nil, err
	}
	out := scaleDown(src, maxDim)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ProcessMessageImage prepares an uploaded image for use as a message body.
func ProcessMessageImage(data []byte) ([]byte, error) {
	return processImage(data, messageImageMaxDim)
}

// ProcessAvatarImage prepares an uploaded image for use as a profile avatar.
func ProcessAvatarImage(data []byte) ([]byte, error) {
	return processImage(data, avatarMaxDim)
}
