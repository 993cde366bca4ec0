package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
)

// Query resilience shared by the Postgres repositories: a circuit breaker in
// front of the pool plus a bounded constant-interval retry. Sentinel
// not-found errors are marked permanent so they never trip the breaker loop.

const (
	breakerMaxRequests   = 3
	breakerInterval      = 30 * time.Second
	breakerTimeout       = 10 * time.Second
	breakerFailureCount  = 5
	defaultRetryInterval = 500 * time.Millisecond
	defaultMaxTries      = 10
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= breakerFailureCount
		},
	})
}

func newBackoffStrategy() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(&backoff.ConstantBackOff{Interval: defaultRetryInterval}),
		backoff.WithMaxTries(defaultMaxTries),
	}
}

type retryOptionFunc func() []backoff.RetryOption

func executeResilient[T any](
	breaker *gobreaker.CircuitBreaker,
	retryOptFunc retryOptionFunc,
	operation func() (T, error),
) (T, error) {
	return backoff.Retry(context.Background(), func() (T, error) {
		var zero T
		result, err := breaker.Execute(func() (interface{}, error) {
			return operation()
		})
		if err != nil {
			if isPermanentError(err) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		return result.(T), nil
	}, retryOptFunc()...)
}
