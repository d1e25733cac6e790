// Package queue carries translation jobs from the send path to the worker
// pool. Enqueue only buffers; translation work happens in consumers, so a
// sender never waits on a model call.
//
// Delivery is at-least-once. Handlers must be idempotent: a job may be seen
// again after a consumer crash (Redis backend) and the worker short-circuits
// jobs already marked done.
package queue

import (
	"context"
	"errors"

	"github.com/owenstack/chat/internal/domain"
)

var (
	// ErrFull is returned by Enqueue when a bounded in-process buffer is full.
	ErrFull = errors.New("queue full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("queue closed")
)

// Handler processes one job. Returned errors are logged and counted; the job
// is acknowledged either way since failures are recorded on the job itself,
// except when the error comes from ctx being cancelled mid-job.
type Handler func(ctx context.Context, job domain.TranslationJob) error

// Queue is a FIFO of translation jobs.
type Queue interface {
	Enqueue(ctx context.Context, job domain.TranslationJob) error
	// Consume blocks, feeding jobs to h until ctx is cancelled or the queue
	// is closed. It returns nil on orderly shutdown.
	Consume(ctx context.Context, h Handler) error
	Close() error
}
