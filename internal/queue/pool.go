package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/owenstack/chat/internal/domain"
)

// Pool runs a fixed number of consumers over one queue. A panic inside the
// handler is recovered and counted so one bad job cannot take a worker down.
type Pool struct {
	q       Queue
	h       Handler
	workers int
}

// NewPool returns a pool of n consumers (at least one).
func NewPool(q Queue, h Handler, n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{q: q, h: h, workers: n}
}

// Run starts the consumers and blocks until all of them return, which
// happens when ctx is cancelled or the queue is closed.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, p.workers)
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := p.q.Consume(ctx, p.wrap(id)); err != nil {
				errs <- fmt.Errorf("worker %d: %w", id, err)
			}
		}(i)
	}
	log.Info().Int("workers", p.workers).Msg("translation worker pool started")
	wg.Wait()
	close(errs)
	log.Info().Msg("translation worker pool stopped")
	return <-errs
}

func (p *Pool) wrap(worker int) Handler {
	return func(ctx context.Context, job domain.TranslationJob) (err error) {
		start := time.Now()
		workersBusy.Inc()
		defer func() {
			workersBusy.Dec()
			jobDuration.Observe(time.Since(start).Seconds())
			if r := recover(); r != nil {
				jobsHandled.WithLabelValues("panic").Inc()
				log.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Int("worker", worker).
					Str("job_id", job.ID).
					Msg("panic in job handler")
				err = fmt.Errorf("panic: %v", r)
				return
			}
			if err != nil {
				jobsHandled.WithLabelValues("error").Inc()
				log.Warn().Err(err).Int("worker", worker).Str("job_id", job.ID).Str("lang", job.TargetLanguage).Msg("job failed")
				return
			}
			jobsHandled.WithLabelValues("ok").Inc()
		}()
		return p.h(ctx, job)
	}
}
