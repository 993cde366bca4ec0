package models

import "time"

type OperationType string

const (
	OperationProbe       OperationType = "probe"
	OperationSyncFetch   OperationType = "sync_fetch"
	OperationSyncPersist OperationType = "sync_persist"
)

type LogStatus string

const (
	LogStatusSuccess  LogStatus = "success"
	LogStatusFailure  LogStatus = "failure"
	LogStatusRetrying LogStatus = "retrying"
)

// IntegrationLog is one append-only audit entry; entries sharing a
// correlation id reconstruct a full run trace.
type IntegrationLog struct {
	ID            int64         `db:"id"`
	ConnectorID   int64         `db:"connector_id"`
	CorrelationID string        `db:"correlation_id"`
	Operation     OperationType `db:"operation"`
	Status        LogStatus     `db:"status"`
	HTTPMethod    *string       `db:"http_method"`
	Endpoint      *string       `db:"endpoint"`
	HTTPStatus    *int          `db:"http_status"`
	Attempt       int           `db:"attempt"`
	ErrorDetail   *string       `db:"error_detail"`
	DurationMs    int64         `db:"duration_ms"`
	StartedAt     time.Time     `db:"started_at"`
	FinishedAt    time.Time     `db:"finished_at"`
	InitiatedBy   string        `db:"initiated_by"`
}
