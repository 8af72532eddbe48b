package analyzer

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoDetector counts frontal faces with a pigo cascade. The unpacked
// classifier is read-only, so one detector serves concurrent callers.
type PigoDetector struct {
	classifier *pigo.Pigo
	minSize    int
	minQuality float32
}

// NewPigoDetector loads a pigo face cascade (the "facefinder" file shipped
// with pigo).
func NewPigoDetector(cascadePath string) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpacking face cascade %s: %w", cascadePath, err)
	}

	return &PigoDetector{classifier: classifier, minSize: 30, minQuality: 5.0}, nil
}

// DetectFaces returns the number of faces found in img.
func (d *PigoDetector) DetectFaces(img image.Image) (int, error) {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols < d.minSize || rows < d.minSize {
		return 0, nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	count := 0
	for _, det := range dets {
		if det.Q >= d.minQuality {
			count++
		}
	}
	return count, nil
}
