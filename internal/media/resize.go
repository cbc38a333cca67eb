package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// MaxWidth is the largest stored image width. Wider uploads are downscaled
// before they reach the bucket, matching what the old deployment asked its
// image host to do.
const MaxWidth = 1280

const jpegQuality = 85

// ErrUnsupportedImage is returned for uploads that are not JPEG or PNG.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Normalize decodes an uploaded image, downscales it to MaxWidth if needed
// and re-encodes it. It returns the bytes to store and their content type.
func Normalize(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	switch format {
	case "jpeg", "png":
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxWidth {
		height := bounds.Dy() * MaxWidth / bounds.Dx()
		scaled := image.NewRGBA(image.Rect(0, 0, MaxWidth, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}
