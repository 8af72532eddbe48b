package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
	"media-catalog/internal/transcoder"
)

// Derivative sizes. Sizes bound the long edge.
const (
	PreviewMaxEdge   = 1600
	ThumbnailMaxEdge = 300
	previewQuality   = 75
	thumbnailQuality = 60

	// stillOffset skips black leading frames.
	stillOffset = time.Second
)

// VideoTranscoder is the external transcoding capability used for video
// derivatives and dimensions.
type VideoTranscoder interface {
	IsEnabled() bool
	CanProbe() bool
	Probe(ctx context.Context, path string) (*transcoder.VideoInfo, error)
	ExtractFrame(ctx context.Context, in, out string, offset time.Duration, maxWidth int) error
	PreviewClip(ctx context.Context, in, out string, opts transcoder.ClipOptions) error
}

// DerivativeGenerator produces thumbnails and previews for catalogued
// items. It is safe for concurrent use: artifacts are written under a
// temporary name and renamed into place, and an existing artifact is
// never regenerated.
type DerivativeGenerator struct {
	layout     Layout
	transcoder VideoTranscoder
	useVips    bool
}

// NewDerivativeGenerator creates the derivative directories and returns a
// generator. useVips selects WebP via libvips; otherwise images are
// encoded as JPEG in pure Go.
func NewDerivativeGenerator(layout Layout, tc VideoTranscoder, useVips bool) (*DerivativeGenerator, error) {
	for _, dir := range []string{layout.PreviewDir, layout.ThumbnailDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating derivative directory %s: %w", dir, err)
		}
	}
	logging.Debug("DerivativeGenerator: previews=%s thumbnails=%s vips=%v", layout.PreviewDir, layout.ThumbnailDir, useVips)
	return &DerivativeGenerator{layout: layout, transcoder: tc, useVips: useVips}, nil
}

// Layout returns where artifacts are written.
func (g *DerivativeGenerator) Layout() Layout {
	return g.layout
}

func (g *DerivativeGenerator) imageExt() string {
	if g.useVips {
		return extWebp
	}
	return extJpeg
}

// Present reports which artifacts already exist for an item.
func (g *DerivativeGenerator) Present(storageName string, kind mediatypes.Kind) (thumbnail, preview bool) {
	return existingPath(g.layout.Candidates(storageName, kind, ArtifactThumbnail)) != "",
		existingPath(g.layout.Candidates(storageName, kind, ArtifactPreview)) != ""
}

// EnsureDerivatives produces whichever of the item's thumbnail and preview
// are missing. Failures are logged and reported in the result; they never
// affect the catalog.
func (g *DerivativeGenerator) EnsureDerivatives(ctx context.Context, path, storageName string, kind mediatypes.Kind) DerivativeResult {
	var res DerivativeResult

	switch kind {
	case mediatypes.KindImage:
		g.ensureImage(ctx, path, storageName, &res)
	case mediatypes.KindVideo:
		g.ensureVideo(ctx, path, storageName, &res)
	default:
		res.Thumbnail, res.Preview = StatusFailed, StatusFailed
		res.Errors = append(res.Errors, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind))
	}

	for _, err := range res.Errors {
		logging.Warn("derivative generation for %s: %v", storageName, err)
	}
	return res
}

type imageTarget struct {
	artifact Artifact
	path     string
	maxEdge  int
	quality  int
}

func (g *DerivativeGenerator) ensureImage(ctx context.Context, path, storageName string, res *DerivativeResult) {
	res.Preview, res.Thumbnail = StatusSkipped, StatusSkipped
	ext := g.imageExt()

	var targets []imageTarget
	if existingPath(g.layout.Candidates(storageName, mediatypes.KindImage, ArtifactPreview)) == "" {
		targets = append(targets, imageTarget{ArtifactPreview, g.layout.ImagePreview(storageName, ext), PreviewMaxEdge, previewQuality})
	} else {
		recordDerivative(mediatypes.KindImage, ArtifactPreview, StatusSkipped, 0)
	}
	if existingPath(g.layout.Candidates(storageName, mediatypes.KindImage, ArtifactThumbnail)) == "" {
		targets = append(targets, imageTarget{ArtifactThumbnail, g.layout.ImageThumbnail(storageName, ext), ThumbnailMaxEdge, thumbnailQuality})
	} else {
		recordDerivative(mediatypes.KindImage, ArtifactThumbnail, StatusSkipped, 0)
	}
	if len(targets) == 0 {
		return
	}

	if err := ctx.Err(); err != nil {
		for _, target := range targets {
			res.set(target.artifact, StatusFailed)
		}
		res.Errors = append(res.Errors, err)
		return
	}

	start := time.Now()
	var errs []error
	if g.useVips {
		errs = encodeWithVips(path, targets)
	} else {
		errs = encodeWithImaging(path, targets)
	}
	elapsed := time.Since(start)

	for i, target := range targets {
		if errs[i] != nil {
			res.set(target.artifact, StatusFailed)
			res.Errors = append(res.Errors, fmt.Errorf("image %s %s: %w", target.artifact, path, errs[i]))
			recordDerivative(mediatypes.KindImage, target.artifact, StatusFailed, elapsed)
			continue
		}
		res.set(target.artifact, StatusGenerated)
		res.Created = append(res.Created, target.path)
		recordDerivative(mediatypes.KindImage, target.artifact, StatusGenerated, elapsed)
	}
}

// encodeWithImaging is the pure Go path: decode once, then fit and encode
// each target as JPEG.
func encodeWithImaging(src string, targets []imageTarget) []error {
	errs := make([]error, len(targets))

	img, err := LoadImageConstrained(src, MaxImageDimension, MaxImagePixels)
	if err != nil {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}

	for i, target := range targets {
		fitted := imaging.Fit(img, target.maxEdge, target.maxEdge, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(target.quality)); err != nil {
			errs[i] = fmt.Errorf("failed to encode %s: %w", target.artifact, err)
			continue
		}
		errs[i] = writeFileAtomic(target.path, buf.Bytes())
	}
	return errs
}

func (g *DerivativeGenerator) ensureVideo(ctx context.Context, path, storageName string, res *DerivativeResult) {
	still := g.layout.VideoStill(storageName)
	res.Thumbnail = g.ensureVideoArtifact(ctx, ArtifactThumbnail, still, res, func() error {
		err := g.transcoder.ExtractFrame(ctx, path, still, stillOffset, ThumbnailMaxEdge)
		var terr *transcoder.TranscodeError
		if err != nil && !(errors.As(err, &terr) && terr.TimedOut) && ctx.Err() == nil {
			// Clips shorter than the offset have no frame there.
			logging.Debug("still at %v failed for %s, retrying at start: %v", stillOffset, path, err)
			err = g.transcoder.ExtractFrame(ctx, path, still, 0, ThumbnailMaxEdge)
		}
		return err
	})

	clip := g.layout.VideoPreview(storageName)
	res.Preview = g.ensureVideoArtifact(ctx, ArtifactPreview, clip, res, func() error {
		return g.transcoder.PreviewClip(ctx, path, clip, transcoder.DefaultClipOptions())
	})
}

func (g *DerivativeGenerator) ensureVideoArtifact(ctx context.Context, artifact Artifact, out string, res *DerivativeResult, produce func() error) Status {
	if existingPath([]string{out}) != "" {
		recordDerivative(mediatypes.KindVideo, artifact, StatusSkipped, 0)
		return StatusSkipped
	}
	if g.transcoder == nil || !g.transcoder.IsEnabled() {
		res.Errors = append(res.Errors, fmt.Errorf("video %s: %w", artifact, transcoder.ErrDisabled))
		recordDerivative(mediatypes.KindVideo, artifact, StatusFailed, 0)
		return StatusFailed
	}
	if err := ctx.Err(); err != nil {
		res.Errors = append(res.Errors, err)
		return StatusFailed
	}

	start := time.Now()
	if err := produce(); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("video %s: %w", artifact, err))
		recordDerivative(mediatypes.KindVideo, artifact, StatusFailed, time.Since(start))
		return StatusFailed
	}
	res.Created = append(res.Created, out)
	recordDerivative(mediatypes.KindVideo, artifact, StatusGenerated, time.Since(start))
	return StatusGenerated
}

// Dimensions returns the pixel size of a media file. Videos are probed when
// ffprobe is available and are otherwise 0x0.
func (g *DerivativeGenerator) Dimensions(ctx context.Context, path string, kind mediatypes.Kind) (width, height int, err error) {
	switch kind {
	case mediatypes.KindImage:
		dims, err := GetImageDimensions(path)
		if err != nil {
			return 0, 0, err
		}
		return dims.Width, dims.Height, nil
	case mediatypes.KindVideo:
		if g.transcoder == nil || !g.transcoder.CanProbe() {
			return 0, 0, nil
		}
		info, err := g.transcoder.Probe(ctx, path)
		if err != nil {
			return 0, 0, err
		}
		return info.Width, info.Height, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

// RemoveDerivatives deletes every artifact an item could own. Missing
// artifacts are not an error.
func (g *DerivativeGenerator) RemoveDerivatives(storageName string) error {
	var errs []error
	for _, p := range g.layout.All(storageName) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *DerivativeResult) set(artifact Artifact, status Status) {
	if artifact == ArtifactPreview {
		r.Preview = status
	} else {
		r.Thumbnail = status
	}
}

func recordDerivative(kind mediatypes.Kind, artifact Artifact, status Status, elapsed time.Duration) {
	metrics.DerivativesTotal.WithLabelValues(string(kind), string(artifact), string(status)).Inc()
	if status == StatusGenerated {
		metrics.DerivativeDuration.WithLabelValues(string(kind), string(artifact)).Observe(elapsed.Seconds())
	}
}

// existingPath returns the first non-empty file among paths, or "".
func existingPath(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return p
		}
	}
	return ""
}

// writeFileAtomic writes data under a hidden temporary name in the target
// directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
