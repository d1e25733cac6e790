package queue

import (
	"context"
	"sync"

	"github.com/owenstack/chat/internal/domain"
)

// Memory is an in-process queue backed by a buffered channel. Jobs are lost
// on process exit; use Redis for multi-instance or durable deployments.
type Memory struct {
	ch     chan domain.TranslationJob
	mu     sync.RWMutex
	closed bool
}

// NewMemory returns a queue buffering up to size jobs.
func NewMemory(size int) *Memory {
	if size < 1 {
		size = 1
	}
	return &Memory{ch: make(chan domain.TranslationJob, size)}
}

// Enqueue never blocks: it fails with ErrFull when the buffer is exhausted.
func (m *Memory) Enqueue(ctx context.Context, job domain.TranslationJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.ch <- job:
		queueDepth.WithLabelValues("memory").Inc()
		return nil
	default:
		return ErrFull
	}
}

// Consume delivers jobs to h until ctx is done or the queue is closed and drained.
func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-m.ch:
			if !ok {
				return nil
			}
			queueDepth.WithLabelValues("memory").Dec()
			_ = h(ctx, job)
		}
	}
}

// Len reports the number of buffered jobs.
func (m *Memory) Len() int { return len(m.ch) }

// Close stops accepting jobs. Consumers drain what is buffered, then return.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
	return nil
}
