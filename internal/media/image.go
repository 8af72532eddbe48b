package media

import (
	"fmt"
	"image"
	"os"

	"media-catalog/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the largest edge decoded at full size by the pure
	// Go path. Larger images are downscaled right after decode.
	MaxImageDimension = 4096

	// MaxImagePixels caps width*height for the pure Go path (~80MB RGBA).
	MaxImagePixels = 20_000_000
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions reads only the image header.
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// constrainedSize scales width x height down to fit maxDimension and
// maxPixels, keeping the aspect ratio. ok is false when no scaling is needed.
func constrainedSize(width, height, maxDimension, maxPixels int) (w, h int, ok bool) {
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	w, h = width, height
	if w > maxDimension || h > maxDimension {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}

	if pixels := w * h; pixels > maxPixels {
		scale := float64(maxPixels) / float64(pixels)
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return max(w, 1), max(h, 1), true
}

// LoadImageConstrained decodes an image with EXIF orientation applied,
// downscaling it when it exceeds maxDimension or maxPixels.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	b := img.Bounds()
	w, h, ok := constrainedSize(b.Dx(), b.Dy(), maxDimension, maxPixels)
	if !ok {
		return img, nil
	}

	logging.Debug("Constraining large image %s from %dx%d to %dx%d", path, b.Dx(), b.Dy(), w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}
