package mediatypes

import (
	"testing"
)

func TestKindForName(t *testing.T) {
	tests := []struct {
		name string
		file string
		want Kind
	}{
		{name: "JPEG image", file: "photo.jpg", want: KindImage},
		{name: "upper case extension", file: "PHOTO.JPEG", want: KindImage},
		{name: "PNG image", file: "a/b/c.png", want: KindImage},
		{name: "BMP image", file: "scan.bmp", want: KindImage},
		{name: "MP4 video", file: "clip.mp4", want: KindVideo},
		{name: "WebM video", file: "clip.webm", want: KindVideo},
		{name: "Unknown extension", file: "notes.txt", want: KindUnsupported},
		{name: "No extension", file: "README", want: KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindForName(tt.file); got != tt.want {
				t.Errorf("KindForName(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestKindForMime(t *testing.T) {
	tests := []struct {
		mime string
		want Kind
	}{
		{mime: "image/jpeg", want: KindImage},
		{mime: "image/jpg", want: KindImage},
		{mime: "IMAGE/PNG", want: KindImage},
		{mime: "video/mp4; codecs=avc1", want: KindVideo},
		{mime: "application/pdf", want: KindUnsupported},
		{mime: "", want: KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := KindForMime(tt.mime); got != tt.want {
				t.Errorf("KindForMime(%q) = %q, want %q", tt.mime, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	if got := GetMimeType(".webp"); got != "image/webp" {
		t.Errorf("GetMimeType(.webp) = %q", got)
	}
	if got := GetMimeType(".xyz"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.xyz) = %q", got)
	}
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		file string
		want bool
	}{
		{name: "plain image", file: "/lib/beach.jpg", want: true},
		{name: "uuid upload", file: "/lib/0b6f1f9e-6a7c-4a53-9a0b-2b1f5c1e2d3f.png", want: true},
		{name: "video", file: "/lib/clip.mov", want: true},
		{name: "hidden file", file: "/lib/.beach.jpg", want: false},
		{name: "unsupported", file: "/lib/notes.txt", want: false},
		{name: "double extension", file: "/lib/holiday.png.jpg", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCandidate(tt.file); got != tt.want {
				t.Errorf("IsCandidate(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestNewFilter(t *testing.T) {
	tests := []struct {
		name           string
		derivativeDirs []string
		want           bool
	}{
		{name: "no derivative dirs", want: false},
		{name: "cache outside library", derivativeDirs: []string{"/cache/previews", "/cache/thumbnails"}, want: false},
		{name: "subdirectory of library", derivativeDirs: []string{"/lib/previews"}, want: false},
		{name: "empty entry ignored", derivativeDirs: []string{""}, want: false},
		{name: "previews in library root", derivativeDirs: []string{"/lib/", "/cache/thumbnails"}, want: true},
		{name: "thumbnails in library root", derivativeDirs: []string{"/cache/previews", "/lib"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewFilter("/lib", tt.derivativeDirs...).SkipDerivatives; got != tt.want {
				t.Errorf("NewFilter(/lib, %q).SkipDerivatives = %v, want %v", tt.derivativeDirs, got, tt.want)
			}
		})
	}
}

func TestFilterAccept(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		shared bool
		want   bool
	}{
		{name: "double extension original", file: "/lib/holiday.png.jpg", shared: false, want: true},
		{name: "webp named after original", file: "/lib/beach.jpg.webp", shared: false, want: true},
		{name: "preview clip name", file: "/lib/clip.mp4_preview.webm", shared: false, want: true},
		{name: "hidden", file: "/lib/.beach.jpg", shared: false, want: false},
		{name: "image derivative in shared root", file: "/lib/beach.jpg.webp", shared: true, want: false},
		{name: "video still in shared root", file: "/lib/clip.mp4.jpg", shared: true, want: false},
		{name: "preview clip in shared root", file: "/lib/clip.mp4_preview.webm", shared: true, want: false},
		{name: "preview suffix on plain name", file: "/lib/my_preview.jpg", shared: true, want: true},
		{name: "plain image in shared root", file: "/lib/beach.jpg", shared: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Filter{SkipDerivatives: tt.shared}
			if got := f.Accept(tt.file); got != tt.want {
				t.Errorf("Filter{SkipDerivatives: %v}.Accept(%q) = %v, want %v", tt.shared, tt.file, got, tt.want)
			}
		})
	}
}
