package ingest

import "errors"

// Pipeline error classes. Read and relocate failures are per-file and leave
// the file in the inbox for retry; a canonical write failure aborts the run.
var (
	ErrReadFile    = errors.New("read csv file")
	ErrWriteOutput = errors.New("write canonical output")
	ErrRelocate    = errors.New("relocate processed file")
)
