package filesystem

import "fmt"

// IOError reports a file that could not be read, written or moved. It
// aborts the ingestion of that one file only.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
