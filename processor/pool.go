package processor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPool runs task(i) for every i in [0, n) on at most workers goroutines.
// Indices are handed out in order from a shared queue. The first task error
// cancels the pool context and stops dispatch (fail-fast).
//
// It returns how many indices were handed to a worker; indices at or above
// dispatched never ran.
func runPool(ctx context.Context, n, workers int, task func(ctx context.Context, i int) error) (dispatched int, err error) {
	if n <= 0 {
		return 0, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				if err := task(gctx, i); err != nil {
					return err
				}
			}
			return nil
		})
	}

feed:
	for i := 0; i < n; i++ {
		// don't hand out more work once the pool is shutting down
		if gctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
			dispatched++
		case <-gctx.Done():
			break feed
		}
	}
	close(jobs)

	return dispatched, g.Wait()
}
