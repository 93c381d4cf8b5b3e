package preview

import (
	"context"
	"sync"
)

// workerPool is a fixed-size goroutine pool with a bounded input queue.
// Queued work always runs to completion; there is no cancellation.
type workerPool[T, R any] struct {
	queue   chan T
	results chan R
	process func(ctx context.Context, t T) R
	wg      sync.WaitGroup
}

// newWorkerPool starts n workers. Both the queue and the result buffer hold
// up to size items, so a caller that submits at most size jobs never blocks.
func newWorkerPool[T, R any](ctx context.Context, n, size int, fn func(context.Context, T) R) *workerPool[T, R] {
	if n < 1 {
		n = 1
	}
	p := &workerPool[T, R]{
		queue:   make(chan T, size),
		results: make(chan R, size),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.queue {
				p.results <- p.process(ctx, t)
			}
		}()
	}
	return p
}

// Submit enqueues a job without blocking (returns false if full).
func (p *workerPool[T, R]) Submit(t T) bool {
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Drain closes the queue, waits for the workers and returns every result.
func (p *workerPool[T, R]) Drain() []R {
	close(p.queue)
	p.wg.Wait()
	close(p.results)
	out := make([]R, 0, len(p.results))
	for r := range p.results {
		out = append(out, r)
	}
	return out
}
