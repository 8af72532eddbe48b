// Package transcoder is the external transcoding capability used for video
// derivatives. It shells out to FFmpeg for still frames and short preview
// clips, and to ffprobe for dimensions.
//
// Every invocation runs under its own deadline and a process-wide
// concurrency limit. Output is written beside the target under a hidden
// temporary name and renamed into place only on success, so the existence
// of an artifact always means it is complete.
package transcoder
