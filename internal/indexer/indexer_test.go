package indexer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/hasher"
	"media-catalog/internal/ingest"
	"media-catalog/internal/media"
	"media-catalog/internal/mediatypes"
)

type fakeReconciler struct {
	root    string
	mu      sync.Mutex
	paths   []string
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeReconciler) LibraryDir() string { return f.root }

func (f *fakeReconciler) Reconcile(ctx context.Context, path string) ingest.Result {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	if filepath.Base(path) == "broken.jpg" {
		return ingest.Result{Outcome: ingest.Failed, Severity: ingest.Recoverable, Err: errors.New("unreadable"),
			Candidate: ingest.Candidate{Path: path}}
	}
	return ingest.Result{Outcome: ingest.Created, Severity: ingest.Success, Candidate: ingest.Candidate{Path: path}}
}

func (f *fakeReconciler) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.paths))
	for _, p := range f.paths {
		out = append(out, filepath.Base(p))
	}
	sort.Strings(out)
	return out
}

type memStore struct {
	mu   sync.Mutex
	last time.Time
}

func (m *memStore) GetLastSweep(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

func (m *memStore) SetLastSweep(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = t
	return nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSweep_VisitsOnlyCandidates(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"a.jpg", "b.mp4", "broken.jpg",
		".hidden.png", "notes.txt",
		filepath.Join(ingest.StagingDirName, "upload.jpg"),
		filepath.Join("nested", "c.jpg"),
	} {
		touch(t, filepath.Join(root, name))
	}

	rec := &fakeReconciler{root: root}
	store := &memStore{}
	idx := New(rec, store, Config{Workers: 2})

	summary, err := idx.Sweep(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	want := []string{"a.jpg", "b.mp4", "broken.jpg"}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Fatalf("reconciled %v, want %v", got, want)
	}

	if summary.Processed != 3 || summary.Created != 2 || summary.Failed != 1 || len(summary.Errors) != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if store.last.IsZero() || !idx.LastSweep().Equal(store.last) {
		t.Errorf("last sweep not recorded: store=%v idx=%v", store.last, idx.LastSweep())
	}
	if status := idx.GetHealthStatus(); status.LastSummary != summary || status.FilesSeen != 3 {
		t.Errorf("health = %+v", status)
	}
}

func TestSweep_DerivativeNames(t *testing.T) {
	tests := []struct {
		name           string
		derivativeDirs func(root string) []string
		want           []string
	}{
		{
			name:           "derivatives outside library",
			derivativeDirs: func(root string) []string { return []string{filepath.Join(root, "..", "previews")} },
			want:           []string{"a.jpg", "a.jpg.webp", "b.mp4_preview.webm", "holiday.png.jpg"},
		},
		{
			name:           "derivatives in library root",
			derivativeDirs: func(root string) []string { return []string{root} },
			want:           []string{"a.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, name := range []string{"a.jpg", "a.jpg.webp", "b.mp4_preview.webm", "holiday.png.jpg"} {
				touch(t, filepath.Join(root, name))
			}

			rec := &fakeReconciler{root: root}
			idx := New(rec, &memStore{}, Config{Workers: 2, Filter: mediatypes.NewFilter(root, tt.derivativeDirs(root)...)})
			if _, err := idx.Sweep(context.Background(), TriggerManual); err != nil {
				t.Fatalf("Sweep() error = %v", err)
			}
			if got := rec.seen(); !slices.Equal(got, tt.want) {
				t.Errorf("reconciled %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSweep_OneAtATime(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))

	rec := &fakeReconciler{root: root, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	idx := New(rec, nil, Config{Workers: 1})

	done := make(chan error, 1)
	go func() {
		_, err := idx.Sweep(context.Background(), TriggerManual)
		done <- err
	}()
	<-rec.entered

	if !idx.IsSweeping() {
		t.Error("IsSweeping() = false during a sweep")
	}
	if _, err := idx.Sweep(context.Background(), TriggerManual); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("concurrent Sweep() error = %v, want ErrSweepInProgress", err)
	}
	if err := idx.Trigger(); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("Trigger() error = %v, want ErrSweepInProgress", err)
	}

	close(rec.block)
	if err := <-done; err != nil {
		t.Errorf("Sweep() error = %v", err)
	}
	if idx.IsSweeping() {
		t.Error("IsSweeping() = true after the sweep")
	}
}

func TestSweep_MissingRoot(t *testing.T) {
	idx := New(&fakeReconciler{root: filepath.Join(t.TempDir(), "missing")}, nil, Config{})
	if _, err := idx.Sweep(context.Background(), TriggerManual); err == nil {
		t.Error("Sweep() of a missing root should fail")
	}
	if idx.IsSweeping() {
		t.Error("failed sweep left the indexer busy")
	}
}

func TestStart_StartupSweepAndStop(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))

	rec := &fakeReconciler{root: root}
	completed := make(chan *SweepSummary, 4)
	idx := New(rec, &memStore{}, Config{OnStartup: true, Interval: 20 * time.Millisecond})
	idx.SetOnSweepComplete(func(s *SweepSummary) { completed <- s })

	idx.Start()
	first := <-completed
	if first.Trigger != TriggerStartup {
		t.Errorf("first sweep trigger = %q, want startup", first.Trigger)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !idx.IsReady() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !idx.IsReady() {
		t.Fatal("IsReady() = false after the startup sweep")
	}

	select {
	case s := <-completed:
		if s.Trigger != TriggerInterval {
			t.Errorf("periodic sweep trigger = %q", s.Trigger)
		}
	case <-time.After(2 * time.Second):
		t.Error("periodic sweep did not run")
	}

	idx.Stop()
	idx.Stop()
}

func TestStart_ReadyWithoutStartupSweep(t *testing.T) {
	idx := New(&fakeReconciler{root: t.TempDir()}, nil, Config{})
	if idx.IsReady() {
		t.Error("IsReady() before Start")
	}
	idx.Start()
	defer idx.Stop()
	if !idx.IsReady() {
		t.Error("IsReady() = false with no startup sweep configured")
	}
}

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: shade, G: 40, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// TestSweep_WithCoordinator runs the sweep against a real catalog.
func TestSweep_WithCoordinator(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	lib := filepath.Join(root, "media")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		t.Fatal(err)
	}

	db, err := database.New(ctx, filepath.Join(root, "media.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h, err := hasher.New(hasher.Blake3)
	if err != nil {
		t.Fatal(err)
	}
	layout := media.Layout{PreviewDir: filepath.Join(root, "previews"), ThumbnailDir: filepath.Join(root, "thumbnails")}
	gen, err := media.NewDerivativeGenerator(layout, nil, false)
	if err != nil {
		t.Fatal(err)
	}

	coord, err := ingest.New(ingest.Config{LibraryDir: lib, IngestWorkers: 1, EnrichWorkers: 2}, db, h, gen, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer coord.Stop(ctx)

	writePNG(t, filepath.Join(lib, "one.png"), 10)
	writePNG(t, filepath.Join(lib, "two.png"), 20)
	writePNG(t, filepath.Join(lib, "two-again.png"), 20)
	legacy, err := db.Insert(ctx, database.MediaItem{StorageName: "old.png", Kind: mediatypes.KindImage})
	if err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(lib, "old.png"), 30)

	idx := New(coord, db, Config{Workers: 3})
	summary, err := idx.Sweep(ctx, TriggerStartup)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if summary.Created != 2 || summary.Duplicates != 1 || summary.Backfilled != 1 {
		t.Errorf("first sweep = %+v", summary)
	}
	coord.Wait()

	item, err := db.FindByID(ctx, legacy.ID)
	if err != nil || !item.HasHash() {
		t.Errorf("legacy item not backfilled: %+v, %v", item, err)
	}
	if last, err := db.GetLastSweep(ctx); err != nil || last.IsZero() {
		t.Errorf("GetLastSweep() = %v, %v", last, err)
	}

	// Nothing changes on a second pass.
	summary, err = idx.Sweep(ctx, TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Resumed != 3 || summary.Created != 0 {
		t.Errorf("second sweep = %+v", summary)
	}

	// Delete one item; its leftover-looking artifacts must not bring it back.
	one, err := db.FindByStorageName(ctx, "one.png")
	if err != nil {
		t.Fatal(err)
	}
	coord.Wait()
	if err := coord.Delete(ctx, one.ID); err != nil {
		t.Fatal(err)
	}
	touch(t, layout.ImageThumbnail("one.png", ".webp"))

	summary, err = idx.Sweep(ctx, TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 0 || summary.Processed != 2 {
		t.Errorf("sweep after delete = %+v", summary)
	}
	if _, err := db.FindByStorageName(ctx, "one.png"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("deleted item resurrected: %v", err)
	}
}
