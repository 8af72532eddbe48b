package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failures int
	stale    int
}

func (r *recordingObserver) ObserveRetryAttempt(string, string) {
	r.mu.Lock()
	r.attempts++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveRetrySuccess(string, string) {
	r.mu.Lock()
	r.success++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveRetryFailure(string, string) {
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()
}

func (r *recordingObserver) ObserveRetryDuration(string, string, float64) {}

func (r *recordingObserver) ObserveStaleError(string, string) {
	r.mu.Lock()
	r.stale++
	r.mu.Unlock()
}

func fastConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"library":    "/media",
		"cache":      "/cache",
		"thumbnails": "/cache/thumbnails",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "library root", path: "/media", want: "library"},
		{name: "library file", path: "/media/a.jpg", want: "library"},
		{name: "longest prefix wins", path: "/cache/thumbnails/a.jpg.webp", want: "thumbnails"},
		{name: "cache file", path: "/cache/previews/a.jpg.webp", want: "cache"},
		{name: "sibling with shared prefix", path: "/mediafiles/a.jpg", want: "unknown"},
		{name: "unrelated", path: "/tmp/a.jpg", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/media"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	rec := &recordingObserver{}
	SetObserver(rec)
	defer SetObserver(nil)

	calls := 0
	got, err := withRetry(context.Background(), "stat", "/media/a.jpg", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if rec.stale != 2 || rec.attempts != 2 || rec.success != 1 || rec.failures != 0 {
		t.Errorf("observer = %+v", rec)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	rec := &recordingObserver{}
	SetObserver(rec)
	defer SetObserver(nil)

	calls := 0
	_, err := withRetry(context.Background(), "open", "/media/a.jpg", fastConfig(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if rec.failures != 1 {
		t.Errorf("failures = %d, want 1", rec.failures)
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := RetryConfig{MaxRetries: 5, InitialBackoff: time.Second, MaxBackoff: time.Second}
	start := time.Now()
	_, err := withRetry(ctx, "stat", "/x", config, func() (int, error) {
		return 0, syscall.ESTALE
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("withRetry() should not sleep after cancellation")
	}
}

func TestStatAndOpenWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	ctx := context.Background()
	info, err := StatWithRetry(ctx, testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	f, err := OpenWithRetry(ctx, testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	_, err = StatWithRetry(ctx, filepath.Join(tmpDir, "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry(missing) error = %v, want not-exist", err)
	}
}

func TestRemoveIfExists(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "gone.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := RemoveIfExists(ctx, path, fastConfig()); err != nil {
		t.Fatalf("RemoveIfExists() error = %v", err)
	}
	if Exists(ctx, path) {
		t.Error("file should be removed")
	}
	if err := RemoveIfExists(ctx, path, fastConfig()); err != nil {
		t.Errorf("RemoveIfExists() on missing file error = %v, want nil", err)
	}
}

func TestIOError(t *testing.T) {
	err := error(&IOError{Op: "hash", Path: "/media/a.jpg", Err: os.ErrNotExist})

	if got := err.Error(); got != "hash /media/a.jpg: file does not exist" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("IOError should unwrap to its cause")
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "hash" {
		t.Error("errors.As should find *IOError")
	}
}
