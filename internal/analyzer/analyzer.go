package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"go.n16f.net/thumbhash"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
)

// ErrAnalysisUnavailable is returned with the empty result when an image
// cannot be analysed at all, for example because it does not decode.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

const (
	// analysisMaxEdge bounds the decoded image. Detection and statistics do
	// not benefit from more pixels than this.
	analysisMaxEdge = 1600
	// colorSampleSize is the square the image is resampled to before
	// clustering.
	colorSampleSize = 150
	// placeholderMaxEdge bounds the image fed to thumbhash.
	placeholderMaxEdge = 100
)

// FaceDetector counts faces in an image.
type FaceDetector interface {
	DetectFaces(img image.Image) (int, error)
}

// PeopleDetector reports whether people are present beyond detected faces.
type PeopleDetector interface {
	DetectPeople(img image.Image) (bool, error)
}

// Result is the outcome of analysing one image.
type Result struct {
	FaceCount      int
	HasPeople      bool
	DominantColors []database.RGB
	Brightness     float64
	Tags           []string
	Placeholder    []byte
}

// EmptyResult is the neutral result: no faces, no people, mid-grey, mid
// brightness, no tags.
func EmptyResult() Result {
	return Result{
		DominantColors: []database.RGB{{128, 128, 128}},
		Brightness:     0.5,
		Tags:           []string{},
	}
}

// Enrichment converts r into the catalog's enrichment fields, marked analysed.
func (r Result) Enrichment() database.Enrichment {
	return database.Enrichment{
		Analyzed:       true,
		FaceCount:      r.FaceCount,
		HasPeople:      r.HasPeople,
		DominantColors: r.DominantColors,
		Brightness:     r.Brightness,
		Tags:           r.Tags,
		Placeholder:    r.Placeholder,
		AnalyzedAt:     time.Now(),
	}
}

// Analyzer runs the content analysis pipeline. It holds no per-call state
// and is safe for concurrent use as long as its detectors are.
type Analyzer struct {
	faces  FaceDetector
	people PeopleDetector
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFaceDetector sets the face detector. Without one, face count is 0.
func WithFaceDetector(d FaceDetector) Option {
	return func(a *Analyzer) { a.faces = d }
}

// WithPeopleDetector sets the people detector. Without one, people are
// present exactly when faces are.
func WithPeopleDetector(d PeopleDetector) Option {
	return func(a *Analyzer) { a.people = d }
}

// New returns an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze decodes the image at path and runs every stage. A failing
// detector degrades to its neutral value. If the image cannot be decoded
// the empty result is returned together with ErrAnalysisUnavailable.
func (a *Analyzer) Analyze(ctx context.Context, path string) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("analysis of %s panicked: %v", path, r)
			res, err = EmptyResult(), fmt.Errorf("%w: panic: %v", ErrAnalysisUnavailable, r)
		}
		status := "success"
		if err != nil {
			status = "unavailable"
		}
		metrics.AnalysisTotal.WithLabelValues(status).Inc()
		metrics.AnalysisDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	}()

	stage := time.Now()
	img, err := media.LoadImageConstrained(path, analysisMaxEdge, analysisMaxEdge*analysisMaxEdge)
	metrics.AnalysisDuration.WithLabelValues("decode").Observe(time.Since(stage).Seconds())
	if err != nil {
		return EmptyResult(), fmt.Errorf("%w: %s: %v", ErrAnalysisUnavailable, path, err)
	}
	if err := ctx.Err(); err != nil {
		return EmptyResult(), fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	return a.AnalyzeImage(img), nil
}

// AnalyzeImage runs every stage on an already decoded image.
func (a *Analyzer) AnalyzeImage(img image.Image) Result {
	res := EmptyResult()
	gray := imaging.Grayscale(img)

	if a.faces != nil {
		stage := time.Now()
		n, err := a.faces.DetectFaces(gray)
		metrics.AnalysisDuration.WithLabelValues("faces").Observe(time.Since(stage).Seconds())
		if err != nil {
			logging.Warn("face detection failed: %v", err)
		} else {
			res.FaceCount = n
		}
	}

	if a.people != nil {
		stage := time.Now()
		found, err := a.people.DetectPeople(gray)
		metrics.AnalysisDuration.WithLabelValues("people").Observe(time.Since(stage).Seconds())
		if err != nil {
			logging.Warn("people detection failed: %v", err)
		} else {
			res.HasPeople = found
		}
	}
	res.HasPeople = res.HasPeople || res.FaceCount > 0

	stage := time.Now()
	sample := imaging.Resize(img, colorSampleSize, colorSampleSize, imaging.Linear)
	if colors := DominantColors(sample, 3); len(colors) > 0 {
		res.DominantColors = colors
	}
	metrics.AnalysisDuration.WithLabelValues("colors").Observe(time.Since(stage).Seconds())

	stage = time.Now()
	res.Brightness = Brightness(img)
	metrics.AnalysisDuration.WithLabelValues("brightness").Observe(time.Since(stage).Seconds())

	res.Tags = DeriveTags(res.FaceCount, res.HasPeople, res.Brightness, res.DominantColors)
	res.Placeholder = thumbhash.EncodeImage(imaging.Fit(img, placeholderMaxEdge, placeholderMaxEdge, imaging.Box))

	return res
}
