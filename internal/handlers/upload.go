package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
)

// sniffLen is how much of each upload is inspected to detect its type.
const sniffLen = 3072

var (
	errTooLarge     = errors.New("file exceeds the upload size limit")
	errTypeMismatch = errors.New("file content does not match its extension")
)

// UploadFileResult is the outcome for one uploaded file.
type UploadFileResult struct {
	Name    string              `json:"name"`
	Outcome ingest.Outcome      `json:"outcome"`
	Item    *database.MediaItem `json:"item,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// UploadResponse reports every file of an upload request.
type UploadResponse struct {
	Files      []UploadFileResult `json:"files"`
	Created    int                `json:"created"`
	Duplicates int                `json:"duplicates"`
	Failed     int                `json:"failed"`
}

// Upload accepts one or more files as multipart/form-data. Each file is
// streamed into the staging area while its digest is computed, then handed
// to the coordinator, which decides synchronously whether it is new or a
// duplicate. Derivatives and analysis follow in the background.
//
// One file failing never fails the others; the response lists a result
// per file.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	report := ingest.NewBatchReport()
	var resp UploadResponse

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logging.Warn("Upload: malformed multipart body: %v", err)
			if len(resp.Files) == 0 {
				writeJSONError(w, "malformed multipart body", http.StatusBadRequest)
				return
			}
			break
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}

		res := h.receive(r.Context(), part)
		part.Close()
		report.Add(res)
		resp.Files = append(resp.Files, uploadResult(res))
	}

	if len(resp.Files) == 0 {
		writeJSONError(w, "no files in request", http.StatusBadRequest)
		return
	}

	resp.Created = report.Count(ingest.Created)
	resp.Duplicates = report.Count(ingest.Duplicate)
	resp.Failed = report.Count(ingest.Failed) + report.Count(ingest.Rejected)

	if err := report.Err("upload"); err != nil {
		logging.Warn("%v", err)
	}

	status := http.StatusOK
	switch {
	case resp.Created > 0:
		status = http.StatusCreated
	case resp.Failed == len(resp.Files):
		status = http.StatusUnprocessableEntity
	}
	writeJSONResponse(w, status, resp)
}

// receive stages one part and ingests it.
func (h *Handlers) receive(ctx context.Context, part *multipart.Part) ingest.Result {
	original := filepath.Base(part.FileName())
	ext := mediatypes.Ext(original)
	cand := ingest.Candidate{OriginalName: original, Source: ingest.SourceUpload}

	kind := mediatypes.KindForExt(ext)
	if kind == mediatypes.KindUnsupported {
		metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
		return rejected(cand, fmt.Errorf("%w: %q", ingest.ErrUnsupportedKind, ext))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		metrics.UploadFilesTotal.WithLabelValues("failed").Inc()
		return failedUpload(cand, &ingest.IOError{Op: "receive", Path: original, Err: err})
	}
	head = head[:n]
	if n == 0 {
		metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
		return rejected(cand, errors.New("empty file"))
	}

	detected := mimetype.Detect(head)
	if mediatypes.KindForMime(detected.String()) != kind {
		metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
		return rejected(cand, fmt.Errorf("%w: %s is %s", errTypeMismatch, original, detected.String()))
	}

	cand.SuggestedName = uuid.NewString() + ext
	cand.MimeType = detected.String()
	cand.Path = filepath.Join(h.coord.StagingDir(), cand.SuggestedName)

	size, digest, err := h.stage(cand.Path, io.MultiReader(bytes.NewReader(head), part))
	if err != nil {
		_ = filesystem.RemoveIfExists(ctx, cand.Path, filesystem.DefaultRetryConfig())
		if errors.Is(err, errTooLarge) {
			metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
			return rejected(cand, err)
		}
		metrics.UploadFilesTotal.WithLabelValues("failed").Inc()
		return failedUpload(cand, err)
	}
	cand.Size, cand.Digest = size, digest
	metrics.UploadBytesTotal.Add(float64(size))

	res := h.coord.Ingest(ctx, cand)
	if !res.OK() {
		// The staged copy is only useful to a successful ingestion.
		_ = filesystem.RemoveIfExists(ctx, cand.Path, filesystem.DefaultRetryConfig())
	}

	switch res.Outcome {
	case ingest.Created:
		metrics.UploadFilesTotal.WithLabelValues("created").Inc()
	case ingest.Duplicate, ingest.AlreadyCatalogued:
		metrics.UploadFilesTotal.WithLabelValues("duplicate").Inc()
	case ingest.Rejected:
		metrics.UploadFilesTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.UploadFilesTotal.WithLabelValues("failed").Inc()
	}
	return res
}

// stage writes src to path, hashing it in the same pass.
func (h *Handlers) stage(path string, src io.Reader) (int64, string, error) {
	dw, err := h.digests.NewWriter()
	if err != nil {
		return 0, "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, "", &ingest.IOError{Op: "stage", Path: path, Err: err}
	}

	n, err := io.Copy(io.MultiWriter(f, dw), io.LimitReader(src, h.maxUploadBytes+1))
	if err == nil && n > h.maxUploadBytes {
		err = errTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return n, "", err
		}
		return n, "", &ingest.IOError{Op: "stage", Path: path, Err: err}
	}
	return n, dw.Sum(), nil
}

func rejected(c ingest.Candidate, err error) ingest.Result {
	return ingest.Result{Candidate: c, Outcome: ingest.Rejected, Severity: ingest.Recoverable, Err: err}
}

func failedUpload(c ingest.Candidate, err error) ingest.Result {
	return ingest.Result{Candidate: c, Outcome: ingest.Failed, Severity: ingest.Recoverable, Err: err}
}

func uploadResult(res ingest.Result) UploadFileResult {
	out := UploadFileResult{
		Name:    res.Candidate.OriginalName,
		Outcome: res.Outcome,
		Item:    res.Item,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
