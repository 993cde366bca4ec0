package platform

import (
	"context"
	"errors"
	"time"

	"esg-sync/internal/models"
)

var ErrEntityNotFound = errors.New("internal entity not found")

// Entity is the platform-side data point a connector writes into. The sync
// pipeline treats it as opaque beyond the fields below; the rest of the
// platform owns its lifecycle.
type Entity struct {
	ID         int64
	Kind       string
	Value      string
	Unit       string
	ExternalID string
	UpdatedAt  time.Time
}

// EntityStore is the platform's internal entity store. The pipeline never
// touches business tables directly.
type EntityStore interface {
	FindByExternalKey(ctx context.Context, connectorID int64, externalID string) (*Entity, error)
	Write(ctx context.Context, connectorID int64, entity *Entity) (*Entity, error)
	MarkManuallyEdited(ctx context.Context, entityID int64) error
}

// AuditSink receives integration log entries for long-term retention, in
// addition to the pipeline's own queryable log table.
type AuditSink interface {
	Record(ctx context.Context, entry *models.IntegrationLog) error
}

// NopAuditSink discards entries; used when no retention sink is configured.
type NopAuditSink struct{}

func (NopAuditSink) Record(context.Context, *models.IntegrationLog) error {
	return nil
}
