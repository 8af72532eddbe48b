package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/metrics"
)

// Supported digest algorithms.
const (
	Blake3  = "blake3"
	Blake2b = "blake2b"
	SHA256  = "sha256"
)

// DefaultChunkSize bounds the memory used per hashing call.
const DefaultChunkSize = 1 << 20

// Hasher computes content digests of media files. A Hasher is stateless
// and safe for concurrent use.
type Hasher struct {
	algorithm string
	chunkSize int
	retry     filesystem.RetryConfig
}

// New returns a Hasher for the named algorithm. An empty name selects blake3.
func New(algorithm string) (*Hasher, error) {
	if algorithm == "" {
		algorithm = Blake3
	}
	h := &Hasher{
		algorithm: algorithm,
		chunkSize: DefaultChunkSize,
		retry:     filesystem.DefaultRetryConfig(),
	}
	if _, err := h.newHash(); err != nil {
		return nil, err
	}
	return h, nil
}

// Algorithm returns the digest algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

func (h *Hasher) newHash() (hash.Hash, error) {
	switch h.algorithm {
	case Blake3:
		return blake3.New(), nil
	case Blake2b:
		return blake2b.New256(nil)
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", h.algorithm)
	}
}

// HashFile returns the hex digest of the file at path and the number of
// bytes read. Any failure to open or read the file, or the file vanishing
// before the digest is complete, is returned as a *filesystem.IOError.
func (h *Hasher) HashFile(ctx context.Context, path string) (string, int64, error) {
	start := time.Now()
	defer func() { metrics.HashDuration.Observe(time.Since(start).Seconds()) }()

	f, err := filesystem.OpenWithRetry(ctx, path, h.retry)
	if err != nil {
		return "", 0, &filesystem.IOError{Op: "hash", Path: path, Err: err}
	}
	defer f.Close()

	digest, n, err := h.HashReader(ctx, f)
	if err != nil {
		return "", n, &filesystem.IOError{Op: "hash", Path: path, Err: err}
	}

	// An open descriptor keeps reading an unlinked file; check it is still there.
	if _, err := os.Stat(path); err != nil {
		return "", n, &filesystem.IOError{Op: "hash", Path: path, Err: err}
	}

	return digest, n, nil
}

// HashReader digests r in chunks until EOF or ctx is done.
func (h *Hasher) HashReader(ctx context.Context, r io.Reader) (string, int64, error) {
	w, err := h.NewWriter()
	if err != nil {
		return "", 0, err
	}

	buf := make([]byte, h.chunkSize)
	n, err := io.CopyBuffer(w, &ctxReader{ctx: ctx, r: r}, buf)
	if err != nil {
		return "", n, err
	}
	return w.Sum(), n, nil
}

// NewWriter returns a writer that digests everything written to it, for
// callers that hash while copying (uploads).
func (h *Hasher) NewWriter() (*DigestWriter, error) {
	hh, err := h.newHash()
	if err != nil {
		return nil, err
	}
	return &DigestWriter{h: hh}, nil
}

// DigestWriter accumulates a digest over the bytes written to it.
type DigestWriter struct {
	h hash.Hash
	n int64
}

func (w *DigestWriter) Write(p []byte) (int, error) {
	n, err := w.h.Write(p)
	w.n += int64(n)
	metrics.HashBytesTotal.Add(float64(n))
	return n, err
}

// Sum returns the hex digest of the bytes written so far.
func (w *DigestWriter) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Len returns the number of bytes written.
func (w *DigestWriter) Len() int64 {
	return w.n
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
