/*
Package filesystem wraps the filesystem calls made by the ingestion pipeline
with retry logic for NFS stale file handle errors (ESTALE).

Media libraries frequently live on network mounts. A file that was just
written by another host, or a directory that was re-exported, can briefly
return ESTALE. Those errors are retried with exponential backoff; every other
error is returned immediately.

	f, err := filesystem.OpenWithRetry(ctx, path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

Retry counts and durations are reported to an Observer labelled by volume.
The volume label comes from a VolumeResolver configured at startup with the
library, preview, thumbnail and database directories.
*/
package filesystem
