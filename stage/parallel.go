package stage

import (
	"context"
	"sync"
)

// Run calls fn for every index in [0, n), at most maxParallel at a time
// (0 or 1 runs sequentially). It waits for every call and returns the error
// of the lowest failing index, so the outcome does not depend on scheduling.
func Run(ctx context.Context, n, maxParallel int, fn func(ctx context.Context, i int) error) error {
	if maxParallel <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, min(maxParallel, n))

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			errs[idx] = fn(ctx, idx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
