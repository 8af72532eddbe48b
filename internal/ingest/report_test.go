package ingest

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestBatchReport(t *testing.T) {
	r := NewBatchReport()
	if err := r.Err("ingest"); err != nil {
		t.Fatalf("Err() on empty report = %v", err)
	}

	r.Add(succeeded(Candidate{OriginalName: "a.jpg"}, Created, nil))
	r.Add(succeeded(Candidate{OriginalName: "b.jpg"}, Duplicate, nil))
	r.Add(failed(Candidate{SuggestedName: "c.txt"}, Rejected, Recoverable, ErrUnsupportedKind))

	if r.Processed() != 3 || r.Count(Created) != 1 || r.Count(Duplicate) != 1 {
		t.Errorf("processed=%d created=%d duplicate=%d", r.Processed(), r.Count(Created), r.Count(Duplicate))
	}

	err := r.Err("ingest")
	if !errors.Is(err, ErrUnsupportedKind) || err.Error() != "ingest: "+ErrUnsupportedKind.Error() {
		t.Errorf("Err() with one failure = %v", err)
	}

	ioErr := &IOError{Op: "hash", Path: "/media/d.jpg", Err: os.ErrNotExist}
	r.Add(failed(Candidate{Path: "/media/d.jpg"}, Failed, Recoverable, ioErr))
	r.AddError("item 7", nil)

	err = r.Err("ingest")
	if err == nil || !strings.Contains(err.Error(), "2 errors") {
		t.Fatalf("Err() with two failures = %v", err)
	}
	var target *IOError
	if !errors.As(err, &target) {
		t.Error("Err() should wrap the last failure")
	}

	msgs := r.Errors()
	if len(msgs) != 2 || !strings.HasPrefix(msgs[0], "c.txt: ") || !strings.HasPrefix(msgs[1], "/media/d.jpg: ") {
		t.Errorf("Errors() = %q", msgs)
	}
	if len(r.Results()) != 4 {
		t.Errorf("Results() has %d entries, want 4", len(r.Results()))
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{Success, "success"},
		{Recoverable, "recoverable"},
		{Fatal, "fatal"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.sev, got, tt.want)
		}
	}
}
