// Package executor runs blocking jobs on a bounded pool so that callers can
// wait on a context instead of on the job itself.
package executor

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is the pool size used when a non-positive size is requested.
const DefaultSize = 4

// Pool bounds the number of concurrently running jobs.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New constructs a Pool that runs at most size jobs at a time.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size reports the configured bound.
func (p *Pool) Size() int { return int(p.size) }

type result[T any] struct {
	val T
	err error
}

// Run executes job on the pool and waits for its result. When ctx ends first,
// Run returns ctx.Err(); the job keeps its slot until it returns.
func Run[T any](ctx context.Context, p *Pool, job func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		v, err := job(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Do is Run for jobs without a result value.
func Do(ctx context.Context, p *Pool, job func(context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, job(ctx)
	})
	return err
}
