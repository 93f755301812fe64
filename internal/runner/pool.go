package runner

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type Job func(ctx context.Context) error

// RunPool executes jobs with at most maxWorkers running at once. Jobs are
// admitted in order. The returned slice holds every non-nil job error in
// job order; jobs that could not be admitted because ctx was cancelled
// report ctx's error.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if len(jobs) == 0 {
		return nil
	}
	maxWorkers = max(1, min(maxWorkers, len(jobs)))

	sem := semaphore.NewWeighted(int64(maxWorkers))
	results := make([]error, len(jobs))
	var g errgroup.Group

	for i, job := range jobs {
		i, job := i, job
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = err
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = job(ctx)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
