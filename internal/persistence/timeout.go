package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// timeoutStore bounds every call of the wrapped store. The call runs on its
// own goroutine so a backend that ignores ctx still cannot block the caller.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout wraps next so each call fails with ErrUnavailable once d elapses.
func WithTimeout(next Store, d time.Duration) Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

type result[T any] struct {
	val T
	err error
}

func bounded[T any](ctx context.Context, d time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return r.val, Unavailable(fmt.Errorf("%s exceeded %s: %w", op, d, r.err))
		}
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, Unavailable(fmt.Errorf("%s exceeded %s: %w", op, d, ctx.Err()))
	}
}

func (s *timeoutStore) Get(ctx context.Context, key string) (Entry, error) {
	return bounded(ctx, s.timeout, "get", func(ctx context.Context) (Entry, error) {
		return s.next.Get(ctx, key)
	})
}

func (s *timeoutStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := bounded(ctx, s.timeout, "set", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Set(ctx, key, value)
	})
	return err
}

func (s *timeoutStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	return bounded(ctx, s.timeout, "compare-and-set", func(ctx context.Context) (int64, error) {
		return s.next.CompareAndSet(ctx, key, value, expected)
	})
}

func (s *timeoutStore) Delete(ctx context.Context, key string) error {
	_, err := bounded(ctx, s.timeout, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Delete(ctx, key)
	})
	return err
}

func (s *timeoutStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	return bounded(ctx, s.timeout, "scan", func(ctx context.Context) ([]string, error) {
		return s.next.Scan(ctx, pattern)
	})
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	_, err := bounded(ctx, s.timeout, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Ping(ctx)
	})
	return err
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}
