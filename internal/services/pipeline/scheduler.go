package pipeline

import (
	"context"
	"sync"
)

// Job is one unit of batch work executed by the scheduler.
type Job func(ctx context.Context)

// Scheduler drains a FIFO job queue with a bounded worker pool. Jobs
// are dequeued in submission order; completion order depends on job
// duration. A failed job never affects its siblings.
type Scheduler struct {
	concurrency int
}

// NewScheduler creates a scheduler with the given worker limit.
func NewScheduler(concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{concurrency: concurrency}
}

// Run executes jobs with at most min(concurrency, len(jobs)) workers
// and blocks until every started job returns. Cancellation is checked
// before each dequeue; jobs already running are expected to observe
// ctx themselves.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) {
	if len(jobs) == 0 {
		return
	}

	queue := make(chan Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	workers := s.concurrency
	if len(jobs) < workers {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case job, ok := <-queue:
					if !ok {
						return
					}
					job(ctx)
				}
			}
		}()
	}
	wg.Wait()
}
