package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"esg-sync/internal/external"
	"esg-sync/internal/models"
	"esg-sync/internal/repository"
	"esg-sync/pkg/log"
)

// Executor wraps a single outbound call with the connector's retry policy.
// Only transient and timeout failures are retried; 4xx authorization and
// validation errors fail immediately. Every attempt is appended to the
// integration log under the run's correlation id with an incrementing attempt
// number. The executor never decides whether the whole run fails; that is the
// orchestrator's call.
type Executor struct {
	logs   repository.IntegrationLogRepository
	logger zerolog.Logger
}

func NewExecutor(logs repository.IntegrationLogRepository) *Executor {
	return &Executor{
		logs:   logs,
		logger: log.Logger.With().Str("component", "retry_executor").Logger(),
	}
}

// Call identifies the operation being attempted for audit purposes.
type Call struct {
	ConnectorID   int64
	CorrelationID string
	Operation     models.OperationType
	HTTPMethod    string
	Endpoint      string
	InitiatedBy   string
}

// Execute invokes operation once and retries per policy on transient failure.
func Execute[T any](
	ctx context.Context,
	e *Executor,
	call Call,
	policy models.RetryPolicy,
	operation func(ctx context.Context) (T, error),
) (T, error) {
	maxTries := policy.MaxAttempts + 1
	attempt := 0

	wrapped := func() (T, error) {
		attempt++
		startedAt := time.Now()

		result, err := operation(ctx)
		finishedAt := time.Now()

		e.appendAttemptLog(call, attempt, maxTries, startedAt, finishedAt, err)

		if err != nil {
			if !external.Retryable(err) {
				return result, backoff.Permanent(err)
			}
			e.logger.Warn().
				Err(err).
				Int64("connector_id", call.ConnectorID).
				Str("correlation_id", call.CorrelationID).
				Int("attempt", attempt).
				Int("max_tries", maxTries).
				Msg("Transient failure on outbound call")
			return result, err
		}
		return result, nil
	}

	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(newBackOff(policy)),
		backoff.WithMaxTries(uint(maxTries)),
	)
}

// policyBackOff adapts the connector's RetryPolicy to the backoff interface,
// keeping RetryPolicy.BackoffDelay the single source of the delay schedule.
type policyBackOff struct {
	policy models.RetryPolicy
	next   int
}

func newBackOff(policy models.RetryPolicy) backoff.BackOff {
	return &policyBackOff{policy: policy, next: 2}
}

func (b *policyBackOff) NextBackOff() time.Duration {
	delay := b.policy.BackoffDelay(b.next)
	b.next++
	return delay
}

func (b *policyBackOff) Reset() {
	b.next = 2
}

func (e *Executor) appendAttemptLog(call Call, attempt, maxTries int, startedAt, finishedAt time.Time, callErr error) {
	status := models.LogStatusSuccess
	var errorDetail *string
	var httpStatus *int

	if callErr != nil {
		status = models.LogStatusFailure
		if external.Retryable(callErr) && attempt < maxTries {
			status = models.LogStatusRetrying
		}
		detail := callErr.Error()
		errorDetail = &detail
		if code := external.StatusCodeOf(callErr); code > 0 {
			httpStatus = &code
		}
	}

	entry := &models.IntegrationLog{
		ConnectorID:   call.ConnectorID,
		CorrelationID: call.CorrelationID,
		Operation:     call.Operation,
		Status:        status,
		HTTPMethod:    &call.HTTPMethod,
		Endpoint:      &call.Endpoint,
		HTTPStatus:    httpStatus,
		Attempt:       attempt,
		ErrorDetail:   errorDetail,
		DurationMs:    finishedAt.Sub(startedAt).Milliseconds(),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
		InitiatedBy:   call.InitiatedBy,
	}

	if err := e.logs.Append(entry); err != nil {
		// Audit writes must not fail the call they describe.
		e.logger.Error().Err(err).
			Str("correlation_id", call.CorrelationID).
			Int("attempt", attempt).
			Msg("Failed to append integration log entry for attempt")
	}
}
