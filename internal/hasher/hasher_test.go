package hasher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/filesystem"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		algo    string
		want    string
		wantErr bool
	}{
		{name: "default", algo: "", want: Blake3},
		{name: "blake3", algo: Blake3, want: Blake3},
		{name: "blake2b", algo: Blake2b, want: Blake2b},
		{name: "sha256", algo: SHA256, want: SHA256},
		{name: "unknown", algo: "md5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.algo)
			if tt.wantErr {
				if err == nil {
					t.Error("New() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if h.Algorithm() != tt.want {
				t.Errorf("Algorithm() = %q, want %q", h.Algorithm(), tt.want)
			}
		})
	}
}

func TestHashFileIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("media bytes "), 300000) // > several chunks
	a := writeFile(t, dir, "a.jpg", data)
	b := writeFile(t, dir, "renamed-copy.png", data)
	c := writeFile(t, dir, "c.jpg", append(append([]byte{}, data...), '!'))

	for _, algo := range []string{Blake3, Blake2b, SHA256} {
		t.Run(algo, func(t *testing.T) {
			h, err := New(algo)
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()

			da, n, err := h.HashFile(ctx, a)
			if err != nil {
				t.Fatalf("HashFile(a) error = %v", err)
			}
			if n != int64(len(data)) {
				t.Errorf("bytes read = %d, want %d", n, len(data))
			}
			db, _, err := h.HashFile(ctx, b)
			if err != nil {
				t.Fatalf("HashFile(b) error = %v", err)
			}
			dc, _, err := h.HashFile(ctx, c)
			if err != nil {
				t.Fatalf("HashFile(c) error = %v", err)
			}

			if da != db {
				t.Error("identical content must give identical digests regardless of name")
			}
			if da == dc {
				t.Error("different content must give different digests")
			}
			if len(da) != 64 {
				t.Errorf("digest length = %d hex chars, want 64", len(da))
			}
		})
	}
}

func TestHashFileMatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.bin", []byte("hello"))

	h, _ := New(SHA256)
	got, _, err := h.HashFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("hello"))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}
}

func TestHashFileMissing(t *testing.T) {
	h, _ := New("")
	_, _, err := h.HashFile(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))

	var ioErr *filesystem.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("HashFile() error = %v, want *filesystem.IOError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist: %v", err)
	}
}

func TestHashReaderCancelled(t *testing.T) {
	h, _ := New("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := h.HashReader(ctx, strings.NewReader("data"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HashReader() error = %v, want context.Canceled", err)
	}
}

func TestDigestWriterMatchesHashReader(t *testing.T) {
	h, _ := New(Blake3)
	data := []byte("streamed while uploading")

	w, err := h.NewWriter()
	if err != nil {
		t.Fatal(err)
	}
	w.Write(data[:5])
	w.Write(data[5:])

	want, _, err := h.HashReader(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if w.Sum() != want {
		t.Errorf("DigestWriter.Sum() = %s, want %s", w.Sum(), want)
	}
	if w.Len() != int64(len(data)) {
		t.Errorf("Len() = %d, want %d", w.Len(), len(data))
	}
}
