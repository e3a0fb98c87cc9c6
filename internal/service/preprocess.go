package service

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/nfnt/resize"
)

// preprocessImage improves OCR accuracy before recognition: grayscale
// conversion, contrast normalization, and shrink-to-fit resizing capped at
// maxDim pixels (never enlarging). This is a quality step, not a correctness
// requirement; callers fall back to the untouched original on error.
func preprocessImage(img image.Image, maxDim uint) image.Image {
	gray := toGrayscale(img)
	normalizeContrast(gray)
	// Thumbnail only ever scales down.
	return resize.Thumbnail(maxDim, maxDim, gray, resize.Lanczos3)
}

// preprocessImageFile decodes path, preprocesses, and writes a temporary PNG.
// Returns the temp path and a cleanup func.
func preprocessImageFile(path string, maxDim uint) (string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	return writeTempPNG(preprocessImage(img, maxDim))
}

// writeTempPNG saves img to a temporary PNG file for the recognition engine.
func writeTempPNG(img image.Image) (string, func(), error) {
	tmp, err := os.CreateTemp("", "ocr-page-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return tmpPath, cleanup, nil
}

func toGrayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// normalizeContrast stretches the luminance histogram to the full 0-255
// range in place.
func normalizeContrast(gray *image.Gray) {
	min, max := uint8(255), uint8(0)
	for _, p := range gray.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if min >= max {
		return
	}
	scale := 255.0 / float64(max-min)
	for i, p := range gray.Pix {
		gray.Pix[i] = uint8(float64(p-min)*scale + 0.5)
	}
}
