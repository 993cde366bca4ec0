package repository

import (
	"time"

	"esg-sync/internal/models"
)

type ConnectorRepository interface {
	Create(connector *models.Connector) (*models.Connector, error)
	Update(connector *models.Connector) error
	GetByID(id int64) (*models.Connector, error)
	SetStatus(id int64, status models.ConnectorStatus, updatedBy string) error
	List() ([]*models.Connector, error)
}

type SyncRecordRepository interface {
	Insert(record *models.SyncRecord) error
	ListByConnector(connectorID int64, limit int) ([]*models.SyncRecord, error)
	ListRejected(connectorID int64, limit int) ([]*models.SyncRecord, error)
	ListConflicts(connectorID int64, limit int) ([]*models.SyncRecord, error)
}

// IntegrationLogRepository is append-only; entries are never mutated.
type IntegrationLogRepository interface {
	Append(entry *models.IntegrationLog) error
	ListByConnector(connectorID int64, limit int) ([]*models.IntegrationLog, error)
	ListByCorrelationID(correlationID string) ([]*models.IntegrationLog, error)
}

type EntitySyncStateRepository interface {
	GetByEntity(connectorID, entityID int64) (*models.EntitySyncState, error)
	GetByExternalID(connectorID int64, externalID string) (*models.EntitySyncState, error)
	Upsert(state *models.EntitySyncState) error
	MarkManuallyEdited(connectorID, entityID int64, editedAt time.Time) error
}
