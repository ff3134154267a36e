package batch

import (
	"context"
	"sync"
)

// workerPool bounds how many files are processed at once
type workerPool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

func newWorkerPool(maxWorkers int) *workerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &workerPool{semaphore: make(chan struct{}, maxWorkers)}
}

// acquire blocks until a slot is free or ctx is done
func (wp *workerPool) acquire(ctx context.Context) error {
	select {
	case wp.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *workerPool) release() {
	<-wp.semaphore
}

// forEach calls fn for every index, at most cap(semaphore) at a time. Indices
// that never get a slot are passed to skipped with the context error.
func (wp *workerPool) forEach(ctx context.Context, indices []int, fn func(context.Context, int), skipped func(int, error)) {
	for n, idx := range indices {
		if err := ctx.Err(); err != nil {
			for _, rest := range indices[n:] {
				skipped(rest, err)
			}
			break
		}
		if err := wp.acquire(ctx); err != nil {
			for _, rest := range indices[n:] {
				skipped(rest, err)
			}
			break
		}

		wp.wg.Add(1)
		go func(i int) {
			defer wp.wg.Done()
			defer wp.release()
			fn(ctx, i)
		}(idx)
	}
	wp.wg.Wait()
}
