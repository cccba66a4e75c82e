package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

const (
	defaultPoolWorkers = 16
	poolReleaseTimeout = 5 * time.Second
)

// workerPool runs blocking engine calls off the caller's goroutine.
type workerPool struct {
	backend string
	pool    *ants.Pool
}

func newWorkerPool(backend string, workers int, nonblocking bool, log logrus.FieldLogger) (*workerPool, error) {
	if workers <= 0 {
		workers = defaultPoolWorkers
	}
	p, err := ants.NewPool(workers,
		ants.WithNonblocking(nonblocking),
		ants.WithLogger(log),
		ants.WithPanicHandler(func(v interface{}) {
			log.WithField("panic", v).Error("worker panic")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &workerPool{backend: backend, pool: p}, nil
}

// run submits fn and waits for it to finish. A rejected submission is
// reported as a ScheduleError; fn's own error is returned unchanged.
func (p *workerPool) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in %s worker: %v", p.backend, r)
			}
		}()
		done <- fn()
	})
	if err != nil {
		return &ScheduleError{Backend: p.backend, Err: err}
	}
	return <-done
}

func (p *workerPool) running() int {
	return p.pool.Running()
}

// close stops accepting work and waits for in-flight calls to drain.
func (p *workerPool) close() error {
	return p.pool.ReleaseTimeout(poolReleaseTimeout)
}
