package transcode

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline.
var (
	// ErrAllQualitiesFailed indicates every encode task in the ladder
	// failed. Fatal to the job.
	ErrAllQualitiesFailed = errors.New("all qualities failed to transcode")

	// ErrJobTimeout indicates the per-job deadline fired. Every subprocess
	// registered for the job has been terminated by the time this is seen.
	ErrJobTimeout = errors.New("transcode job timed out")

	// ErrQueueFull indicates the submission queue is at capacity.
	ErrQueueFull = errors.New("transcode queue is full")

	// ErrJobNotFound indicates an unknown job handle.
	ErrJobNotFound = errors.New("job not found")

	// ErrShuttingDown indicates the pool no longer accepts submissions.
	ErrShuttingDown = errors.New("transcode pool is shutting down")
)

// EncodeError is a per-quality encode failure. Individually tolerated; the
// job only fails when the entire ladder produces these.
type EncodeError struct {
	Quality string
	Err     error
	// Detail carries the tail of the subprocess stderr when available.
	Detail string
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("encoding %s: %v: %s", e.Quality, e.Err, e.Detail)
	}
	return fmt.Sprintf("encoding %s: %v", e.Quality, e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}
