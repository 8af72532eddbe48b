package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind is the media kind of a catalogued item.
type Kind string

const (
	// KindImage is a still image.
	KindImage Kind = "image"
	// KindVideo is a video clip.
	KindVideo Kind = "video"
	// KindUnsupported marks files the pipeline does not ingest.
	KindUnsupported Kind = ""
)

// PreviewSuffix is appended to the storage name of a video preview clip.
const PreviewSuffix = "_preview"

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",

	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// canonicalExt picks the extension used when only a MIME type is known.
var canonicalExt = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/bmp":        ".bmp",
	"image/webp":       ".webp",
	"video/mp4":        ".mp4",
	"video/x-m4v":      ".m4v",
	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",
	"video/webm":       ".webm",
	"video/x-msvideo":  ".avi",
}

// Ext returns the lowercased extension of name, including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// KindForExt returns the Kind for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
func KindForExt(ext string) Kind {
	if ImageExtensions[ext] {
		return KindImage
	}
	if VideoExtensions[ext] {
		return KindVideo
	}
	return KindUnsupported
}

// KindForName returns the Kind for a file name based on its extension.
func KindForName(name string) Kind {
	return KindForExt(Ext(name))
}

// KindForMime returns the Kind for a MIME type such as "image/png".
func KindForMime(mime string) Kind {
	mime = normalizeMime(mime)
	if ext, ok := canonicalExt[mime]; ok {
		return KindForExt(ext)
	}
	return KindUnsupported
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsHidden reports whether a base name is a dotfile.
func IsHidden(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".")
}

// IsDerivativeName reports whether a file name looks like a generated
// artifact rather than an original: either a video preview clip
// ("<name>_preview.<ext>") or an artifact named after a storage name
// ("<name>.jpg.webp").
func IsDerivativeName(name string) bool {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(stem, PreviewSuffix) && KindForName(strings.TrimSuffix(stem, PreviewSuffix)) != KindUnsupported {
		return true
	}
	return KindForName(stem) != KindUnsupported
}

// IsCandidate reports whether a file name is visible and of a supported
// kind. It does not look for derivative names; see Filter.
func IsCandidate(name string) bool {
	return !IsHidden(name) && KindForName(name) != KindUnsupported
}

// Filter picks the ingestion candidates among the top-level entries of one
// library root.
type Filter struct {
	// SkipDerivatives rejects names that look like generated artifacts.
	// Only set it when a derivative directory is the library root itself;
	// otherwise "holiday.png.jpg" is an ordinary original.
	SkipDerivatives bool
}

// NewFilter returns the Filter for root given where derivatives are
// written. Empty directories are ignored.
func NewFilter(root string, derivativeDirs ...string) Filter {
	root = filepath.Clean(root)
	for _, dir := range derivativeDirs {
		if dir != "" && filepath.Clean(dir) == root {
			return Filter{SkipDerivatives: true}
		}
	}
	return Filter{}
}

// Accept reports whether name should be handed to ingestion.
func (f Filter) Accept(name string) bool {
	return IsCandidate(name) && !(f.SkipDerivatives && IsDerivativeName(name))
}

func normalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "image/jpg" {
		return "image/jpeg"
	}
	return mime
}
