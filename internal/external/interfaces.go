package external

import (
	"context"

	"esg-sync/internal/models"
)

// Connection is the outbound surface the sync pipeline consumes.
type Connection interface {
	FetchRecords(ctx context.Context, connector *models.Connector) ([]Record, error)
	Probe(ctx context.Context, connector *models.Connector) (*ProbeResult, error)
}
