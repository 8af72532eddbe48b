package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-catalog/internal/database"
	"media-catalog/internal/indexer"
)

type env struct {
	lib string
	db  string
}

func setupEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	e := env{lib: filepath.Join(root, "media"), db: filepath.Join(root, "db")}
	for _, dir := range []string{e.lib, e.db} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("LIBRARY_DIR", e.lib)
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DATABASE_DIR", e.db)
	t.Setenv("VIPS_ENABLED", "false")
	t.Setenv("HASH_ALGORITHM", "")
	t.Setenv("FACE_CASCADE", "")
	t.Setenv("LOG_LEVEL", "")
	return e
}

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{R: shade, G: shade / 2, B: 200, A: 255})
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

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSweepAndStats(t *testing.T) {
	e := setupEnv(t)
	writePNG(t, filepath.Join(e.lib, "a.png"), 10)
	writePNG(t, filepath.Join(e.lib, "b.png"), 20)
	writePNG(t, filepath.Join(e.lib, "c.png"), 10)

	out, _, err := run(t, "sweep")
	if err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	var summary indexer.SweepSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("sweep output %q: %v", out, err)
	}
	if summary.Processed != 3 || summary.Created != 2 || summary.Duplicates != 1 {
		t.Errorf("summary = %+v", summary)
	}

	out, _, err = run(t, "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var stats database.CatalogStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output %q: %v", out, err)
	}
	if stats.TotalItems != 2 || stats.TotalImages != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestIngestAndDelete(t *testing.T) {
	e := setupEnv(t)
	outside := filepath.Join(e.lib, ".staging")
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(outside, "new.png")
	writePNG(t, src, 30)

	out, _, err := run(t, "ingest", src)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	fields := strings.Fields(out)
	if len(fields) != 3 || fields[0] != "created" {
		t.Fatalf("ingest output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(e.lib, "new.png")); err != nil {
		t.Errorf("ingested file not in library: %v", err)
	}

	out, _, err = run(t, "delete", fields[1])
	if err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if !strings.HasPrefix(out, "deleted") {
		t.Errorf("delete output = %q", out)
	}

	_, stderr, err := run(t, "delete", fields[1])
	if err == nil || !strings.Contains(stderr, "no such item") {
		t.Errorf("second delete error = %v, stderr = %q", err, stderr)
	}
}

func TestIngestRejectsUnsupported(t *testing.T) {
	e := setupEnv(t)
	src := filepath.Join(e.lib, "notes.txt")
	if err := os.WriteFile(src, []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, stderr, err := run(t, "ingest", src)
	if err == nil {
		t.Fatal("ingest of a text file should fail")
	}
	if !strings.HasPrefix(out, "rejected") || !strings.Contains(stderr, "notes.txt") {
		t.Errorf("stdout = %q, stderr = %q", out, stderr)
	}
}

func TestAnalyzeAndDerivatives(t *testing.T) {
	e := setupEnv(t)
	writePNG(t, filepath.Join(e.lib, "a.png"), 40)
	if _, _, err := run(t, "sweep"); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, "analyze", "--workers", "2")
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	// The sweep already drained enrichment, so nothing is pending.
	if !strings.HasPrefix(out, "analyze: 0 items processed") {
		t.Errorf("analyze output = %q", out)
	}

	out, _, err = run(t, "derivatives")
	if err != nil {
		t.Fatalf("derivatives error = %v", err)
	}
	if !strings.HasPrefix(out, "derivatives: 1 items processed, 0 failed") {
		t.Errorf("derivatives output = %q", out)
	}
}

func TestDeleteRejectsBadIDs(t *testing.T) {
	setupEnv(t)
	if _, _, err := run(t, "delete", "x"); err == nil || !strings.Contains(err.Error(), "invalid item id") {
		t.Errorf("delete x error = %v", err)
	}
}

func TestWorkersOr(t *testing.T) {
	if workersOr(0, 4) != 4 || workersOr(2, 4) != 2 || workersOr(-1, 3) != 3 {
		t.Error("workersOr should prefer a positive flag")
	}
}
