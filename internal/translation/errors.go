package translation

import "errors"

var (
	// ErrJobNotFound is returned when a dequeued job has no persisted row,
	// typically because its room was deleted in the meantime.
	ErrJobNotFound = errors.New("translation job not found")
	// ErrModelOutput indicates the model replied without a usable translation.
	ErrModelOutput = errors.New("invalid model output")
	// ErrModelUnavailable wraps a model failure that survived all retries.
	ErrModelUnavailable = errors.New("translation model unavailable")
	// ErrInterrupted is returned when the worker's context ends mid-job. The
	// job keeps its non-terminal state and runs again on redelivery.
	ErrInterrupted = errors.New("translation job interrupted")
)
