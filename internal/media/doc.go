// Package media produces derivative artifacts for catalogued items.
//
// For images the DerivativeGenerator writes a preview (long edge 1600px) and
// a thumbnail (long edge 300px), as WebP through libvips when it is
// available and as JPEG through the imaging package otherwise. For videos it
// asks the transcoder for a still frame and a short silent preview clip.
//
// Artifacts live in two directories keyed by the item's storage name. An
// artifact that already exists is never regenerated, so generation can be
// retried by any caller at any time.
package media
