package media

import (
	"errors"
	"path/filepath"
	"testing"

	"media-catalog/internal/mediatypes"
)

func testLayout() Layout {
	return Layout{PreviewDir: "/cache/previews", ThumbnailDir: "/cache/thumbnails"}
}

func TestLayoutPaths(t *testing.T) {
	l := testLayout()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"image preview webp", l.ImagePreview("a.jpg", extWebp), "/cache/previews/a.jpg.webp"},
		{"image thumbnail jpeg", l.ImageThumbnail("a.jpg", extJpeg), "/cache/thumbnails/a.jpg.jpg"},
		{"video still", l.VideoStill("b.mp4"), "/cache/thumbnails/b.mp4.jpg"},
		{"video preview", l.VideoPreview("b.mp4"), "/cache/previews/b.mp4_preview.webm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != filepath.FromSlash(tt.want) {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLayoutCandidates(t *testing.T) {
	l := testLayout()

	if got := l.Candidates("a.jpg", mediatypes.KindImage, ArtifactPreview); len(got) != 2 {
		t.Errorf("image preview candidates = %v, want webp and jpeg", got)
	}
	if got := l.Candidates("b.mp4", mediatypes.KindVideo, ArtifactThumbnail); len(got) != 1 || got[0] != l.VideoStill("b.mp4") {
		t.Errorf("video thumbnail candidates = %v", got)
	}
	if got := l.Candidates("c.txt", mediatypes.KindUnsupported, ArtifactPreview); got != nil {
		t.Errorf("unsupported candidates = %v, want nil", got)
	}
}

func TestLayoutAll(t *testing.T) {
	l := testLayout()
	all := l.All("x.mp4")

	seen := map[string]bool{}
	for _, p := range all {
		if seen[p] {
			t.Errorf("All() lists %q twice", p)
		}
		seen[p] = true
	}
	for _, want := range []string{l.VideoPreview("x.mp4"), l.VideoStill("x.mp4"), l.ImagePreview("x.mp4", extWebp)} {
		if !seen[want] {
			t.Errorf("All() missing %q", want)
		}
	}
}

func TestDerivativeResult(t *testing.T) {
	ok := DerivativeResult{Thumbnail: StatusGenerated, Preview: StatusSkipped}
	if !ok.Complete() || ok.Err() != nil {
		t.Errorf("result %+v should be complete without error", ok)
	}

	cause := errors.New("boom")
	failed := DerivativeResult{Thumbnail: StatusGenerated, Preview: StatusFailed, Errors: []error{cause}}
	if failed.Complete() {
		t.Error("result with a failed artifact should not be complete")
	}
	if !errors.Is(failed.Err(), cause) {
		t.Errorf("Err() = %v, want to wrap cause", failed.Err())
	}
}
