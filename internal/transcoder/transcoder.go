package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Config configures the external transcoder.
type Config struct {
	FFmpegPath  string        // defaults to "ffmpeg" on PATH
	FFprobePath string        // defaults to "ffprobe" on PATH
	Timeout     time.Duration // per invocation; 0 means 60s
	// MaxConcurrent bounds simultaneous ffmpeg processes; 0 means 2.
	MaxConcurrent int64
}

// Transcoder runs ffmpeg and ffprobe for video derivatives. Every
// invocation is time-bounded; a process that outlives its deadline is
// killed and reported as a TranscodeError with TimedOut set.
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	enabled bool
	timeout time.Duration
	sem     *semaphore.Weighted

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// VideoInfo contains information about a video file.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
}

// TranscodeError reports a failed or timed-out external tool invocation.
type TranscodeError struct {
	Job      string
	Path     string
	Err      error
	TimedOut bool
	Stderr   string
}

func (e *TranscodeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("transcode %s %s: timed out: %v", e.Job, e.Path, e.Err)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("transcode %s %s: %v: %s", e.Job, e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("transcode %s %s: %v", e.Job, e.Path, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// ErrDisabled is returned when ffmpeg is not installed.
var ErrDisabled = errors.New("transcoder disabled: ffmpeg not available")

// New creates a Transcoder. It is disabled when ffmpeg cannot be found.
func New(cfg Config) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}

	t := &Transcoder{
		timeout:   cfg.Timeout,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		processes: make(map[string]*exec.Cmd),
	}

	if path, err := exec.LookPath(cfg.FFmpegPath); err == nil {
		t.ffmpeg = path
		t.enabled = true
	} else {
		logging.Warn("ffmpeg not found (%v): video derivatives disabled", err)
	}
	if path, err := exec.LookPath(cfg.FFprobePath); err == nil {
		t.ffprobe = path
	}

	return t
}

// IsEnabled returns whether ffmpeg is available.
func (t *Transcoder) IsEnabled() bool {
	return t.enabled
}

// CanProbe returns whether ffprobe is available.
func (t *Transcoder) CanProbe() bool {
	return t.ffprobe != ""
}

type probeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, errors.New("no video stream")
	}
	info := &VideoInfo{
		Width:  out.Streams[0].Width,
		Height: out.Streams[0].Height,
		Codec:  out.Streams[0].CodecName,
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	return info, nil
}

// Probe returns the dimensions, codec and duration of the first video stream.
func (t *Transcoder) Probe(ctx context.Context, filePath string) (*VideoInfo, error) {
	if t.ffprobe == "" {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height:format=duration",
		filePath,
	)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.TranscoderJobDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	if err != nil {
		terr := &TranscodeError{Job: "probe", Path: filePath, Err: err, Stderr: trimStderr(stderr.String())}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			terr.TimedOut = true
			metrics.TranscoderJobsTotal.WithLabelValues("probe", "timeout").Inc()
		} else {
			metrics.TranscoderJobsTotal.WithLabelValues("probe", "error").Inc()
		}
		return nil, terr
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		metrics.TranscoderJobsTotal.WithLabelValues("probe", "error").Inc()
		return nil, &TranscodeError{Job: "probe", Path: filePath, Err: err}
	}
	metrics.TranscoderJobsTotal.WithLabelValues("probe", "success").Inc()
	return info, nil
}

func stillArgs(in, out string, offset time.Duration, maxWidth int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatOffset(offset),
		"-i", in,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", maxWidth),
		"-q:v", "4",
		out,
	}
}

// ClipOptions shapes a preview clip.
type ClipOptions struct {
	Duration time.Duration
	FPS      int
	MaxWidth int
}

// DefaultClipOptions is a three second, 8 fps, 480px-wide silent clip.
func DefaultClipOptions() ClipOptions {
	return ClipOptions{Duration: 3 * time.Second, FPS: 8, MaxWidth: 480}
}

func clipArgs(in, out string, opts ClipOptions) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", "0",
		"-t", formatOffset(opts.Duration),
		"-i", in,
		"-an",
		"-vf", fmt.Sprintf("fps=%d,scale='min(%d,iw)':-2", opts.FPS, opts.MaxWidth),
		"-c:v", "libvpx",
		"-b:v", "500k",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-auto-alt-ref", "0",
		"-threads", "1",
		out,
	}
}

// ExtractFrame writes one frame, taken offset into the clip and scaled to at
// most maxWidth pixels wide, to out as a JPEG.
func (t *Transcoder) ExtractFrame(ctx context.Context, in, out string, offset time.Duration, maxWidth int) error {
	return t.run(ctx, "still", in, out, func(tmp string) []string {
		return stillArgs(in, tmp, offset, maxWidth)
	})
}

// PreviewClip writes a short, silent, low frame rate WebM clip to out.
// Playback loops on the client.
func (t *Transcoder) PreviewClip(ctx context.Context, in, out string, opts ClipOptions) error {
	return t.run(ctx, "preview", in, out, func(tmp string) []string {
		return clipArgs(in, tmp, opts)
	})
}

// run executes ffmpeg writing to a hidden temporary file beside out, then
// renames it into place so a partial artifact is never mistaken for a
// finished one.
func (t *Transcoder) run(ctx context.Context, job, in, out string, args func(tmp string) []string) error {
	if !t.enabled {
		return &TranscodeError{Job: job, Path: in, Err: ErrDisabled}
	}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return &TranscodeError{Job: job, Path: in, Err: err}
	}
	defer t.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	ext := filepath.Ext(out)
	tmp := filepath.Join(filepath.Dir(out), "."+strings.TrimSuffix(filepath.Base(out), ext)+".tmp"+ext)
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, t.ffmpeg, args(tmp)...)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.processMu.Lock()
	t.processes[out] = cmd
	t.processMu.Unlock()
	defer func() {
		t.processMu.Lock()
		delete(t.processes, out)
		t.processMu.Unlock()
	}()

	metrics.TranscoderJobsInProgress.Inc()
	start := time.Now()
	err := cmd.Run()
	metrics.TranscoderJobsInProgress.Dec()
	metrics.TranscoderJobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())

	if err != nil {
		terr := &TranscodeError{Job: job, Path: in, Err: err, Stderr: trimStderr(stderr.String())}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			terr.TimedOut = true
			metrics.TranscoderJobsTotal.WithLabelValues(job, "timeout").Inc()
		} else {
			metrics.TranscoderJobsTotal.WithLabelValues(job, "error").Inc()
		}
		return terr
	}

	if info, statErr := os.Stat(tmp); statErr != nil || info.Size() == 0 {
		metrics.TranscoderJobsTotal.WithLabelValues(job, "error").Inc()
		return &TranscodeError{Job: job, Path: in, Err: errors.New("ffmpeg produced no output"), Stderr: trimStderr(stderr.String())}
	}

	if err := os.Rename(tmp, out); err != nil {
		metrics.TranscoderJobsTotal.WithLabelValues(job, "error").Inc()
		return &TranscodeError{Job: job, Path: in, Err: err}
	}

	metrics.TranscoderJobsTotal.WithLabelValues(job, "success").Inc()
	return nil
}

// Cleanup kills every running ffmpeg process. Used at shutdown.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for out, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoding process for: %s", out)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoding process for %s: %v", out, err)
			}
		}
	}
}

func formatOffset(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	const max = 500
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}
