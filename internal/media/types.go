package media

import (
	"errors"
	"path/filepath"

	"media-catalog/internal/mediatypes"
)

// Artifact names a derivative produced for a catalogued item.
type Artifact string

const (
	// ArtifactThumbnail is the small grid-scale artifact. For videos it is a
	// still frame.
	ArtifactThumbnail Artifact = "thumbnail"
	// ArtifactPreview is the viewer-scale artifact. For videos it is a short
	// silent clip.
	ArtifactPreview Artifact = "preview"
)

// Status is the outcome of ensuring one artifact.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "error"
)

// Encoded image extensions. WebP needs libvips; JPEG is the pure Go fallback.
const (
	extWebp = ".webp"
	extJpeg = ".jpg"
	extClip = ".webm"
)

// ErrUnsupportedKind is returned for media kinds without a derivative recipe.
var ErrUnsupportedKind = errors.New("unsupported media kind")

// Layout locates derivative artifacts. Artifacts are keyed by the item's
// storage name, so the same item always maps to the same paths.
type Layout struct {
	PreviewDir   string
	ThumbnailDir string
}

// ImagePreview returns the preview path for an image encoded as ext.
func (l Layout) ImagePreview(storageName, ext string) string {
	return filepath.Join(l.PreviewDir, storageName+ext)
}

// ImageThumbnail returns the thumbnail path for an image encoded as ext.
func (l Layout) ImageThumbnail(storageName, ext string) string {
	return filepath.Join(l.ThumbnailDir, storageName+ext)
}

// VideoStill returns the still-frame thumbnail path for a video.
func (l Layout) VideoStill(storageName string) string {
	return filepath.Join(l.ThumbnailDir, storageName+extJpeg)
}

// VideoPreview returns the preview clip path for a video.
func (l Layout) VideoPreview(storageName string) string {
	return filepath.Join(l.PreviewDir, storageName+mediatypes.PreviewSuffix+extClip)
}

// Candidates returns every path at which artifact may already exist for an
// item of the given kind. An image encoded before or after libvips became
// available counts as present in either format.
func (l Layout) Candidates(storageName string, kind mediatypes.Kind, artifact Artifact) []string {
	switch kind {
	case mediatypes.KindImage:
		if artifact == ArtifactPreview {
			return []string{l.ImagePreview(storageName, extWebp), l.ImagePreview(storageName, extJpeg)}
		}
		return []string{l.ImageThumbnail(storageName, extWebp), l.ImageThumbnail(storageName, extJpeg)}
	case mediatypes.KindVideo:
		if artifact == ArtifactPreview {
			return []string{l.VideoPreview(storageName)}
		}
		return []string{l.VideoStill(storageName)}
	}
	return nil
}

// All returns every artifact path an item could own regardless of kind.
// Used when deleting an item.
func (l Layout) All(storageName string) []string {
	var paths []string
	for _, kind := range []mediatypes.Kind{mediatypes.KindImage, mediatypes.KindVideo} {
		for _, artifact := range []Artifact{ArtifactThumbnail, ArtifactPreview} {
			for _, p := range l.Candidates(storageName, kind, artifact) {
				if !contains(paths, p) {
					paths = append(paths, p)
				}
			}
		}
	}
	return paths
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DerivativeResult reports what EnsureDerivatives did for one item.
type DerivativeResult struct {
	Thumbnail Status
	Preview   Status
	// Created lists artifacts written by this call.
	Created []string
	Errors  []error
}

// Err joins the per-artifact failures, or returns nil.
func (r DerivativeResult) Err() error {
	return errors.Join(r.Errors...)
}

// Complete reports whether both artifacts exist after the call.
func (r DerivativeResult) Complete() bool {
	return r.Thumbnail != StatusFailed && r.Preview != StatusFailed
}
