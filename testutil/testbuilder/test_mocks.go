package testbuilder

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"esg-sync/internal/external"
	"esg-sync/internal/models"
	"esg-sync/internal/platform"
)

// ********
//
// MockConnection is a mock implementation of the external.Connection interface
//
// ********
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) FetchRecords(ctx context.Context, connector *models.Connector) ([]external.Record, error) {
	args := m.Called(ctx, connector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]external.Record), args.Error(1)
}

func (m *MockConnection) Probe(ctx context.Context, connector *models.Connector) (*external.ProbeResult, error) {
	args := m.Called(ctx, connector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.ProbeResult), args.Error(1)
}

// ********
//
// MockCredentialResolver is a mock implementation of the external.CredentialResolver interface
//
// ********
type MockCredentialResolver struct {
	mock.Mock
}

func (m *MockCredentialResolver) Resolve(ctx context.Context, secretRef string) (*external.Credential, error) {
	args := m.Called(ctx, secretRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.Credential), args.Error(1)
}

// ********
//
// MockEntityStore is a mock implementation of the platform.EntityStore interface
//
// ********
type MockEntityStore struct {
	mock.Mock
}

func (m *MockEntityStore) FindByExternalKey(ctx context.Context, connectorID int64, externalID string) (*platform.Entity, error) {
	args := m.Called(ctx, connectorID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Entity), args.Error(1)
}

func (m *MockEntityStore) Write(ctx context.Context, connectorID int64, entity *platform.Entity) (*platform.Entity, error) {
	args := m.Called(ctx, connectorID, entity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Entity), args.Error(1)
}

func (m *MockEntityStore) MarkManuallyEdited(ctx context.Context, entityID int64) error {
	args := m.Called(ctx, entityID)
	return args.Error(0)
}

// ********
//
// MockConnectorRepository is a mock implementation of the repository.ConnectorRepository interface
//
// ********
type MockConnectorRepository struct {
	mock.Mock
}

func (m *MockConnectorRepository) Create(connector *models.Connector) (*models.Connector, error) {
	args := m.Called(connector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Connector), args.Error(1)
}

func (m *MockConnectorRepository) Update(connector *models.Connector) error {
	args := m.Called(connector)
	return args.Error(0)
}

func (m *MockConnectorRepository) GetByID(id int64) (*models.Connector, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Connector), args.Error(1)
}

func (m *MockConnectorRepository) SetStatus(id int64, status models.ConnectorStatus, updatedBy string) error {
	args := m.Called(id, status, updatedBy)
	return args.Error(0)
}

func (m *MockConnectorRepository) List() ([]*models.Connector, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Connector), args.Error(1)
}

// ********
//
// MockSyncRecordRepository is a mock implementation of the repository.SyncRecordRepository interface
//
// ********
type MockSyncRecordRepository struct {
	mock.Mock
}

func (m *MockSyncRecordRepository) Insert(record *models.SyncRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockSyncRecordRepository) ListByConnector(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	args := m.Called(connectorID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncRecord), args.Error(1)
}

func (m *MockSyncRecordRepository) ListRejected(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	args := m.Called(connectorID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncRecord), args.Error(1)
}

func (m *MockSyncRecordRepository) ListConflicts(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	args := m.Called(connectorID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncRecord), args.Error(1)
}

// ********
//
// MockIntegrationLogRepository is a mock implementation of the repository.IntegrationLogRepository interface
//
// ********
type MockIntegrationLogRepository struct {
	mock.Mock
}

func (m *MockIntegrationLogRepository) Append(entry *models.IntegrationLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockIntegrationLogRepository) ListByConnector(connectorID int64, limit int) ([]*models.IntegrationLog, error) {
	args := m.Called(connectorID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.IntegrationLog), args.Error(1)
}

func (m *MockIntegrationLogRepository) ListByCorrelationID(correlationID string) ([]*models.IntegrationLog, error) {
	args := m.Called(correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.IntegrationLog), args.Error(1)
}

// ********
//
// MockEntitySyncStateRepository is a mock implementation of the repository.EntitySyncStateRepository interface
//
// ********
type MockEntitySyncStateRepository struct {
	mock.Mock
}

func (m *MockEntitySyncStateRepository) GetByEntity(connectorID, entityID int64) (*models.EntitySyncState, error) {
	args := m.Called(connectorID, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EntitySyncState), args.Error(1)
}

func (m *MockEntitySyncStateRepository) GetByExternalID(connectorID int64, externalID string) (*models.EntitySyncState, error) {
	args := m.Called(connectorID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EntitySyncState), args.Error(1)
}

func (m *MockEntitySyncStateRepository) Upsert(state *models.EntitySyncState) error {
	args := m.Called(state)
	return args.Error(0)
}

func (m *MockEntitySyncStateRepository) MarkManuallyEdited(connectorID, entityID int64, editedAt time.Time) error {
	args := m.Called(connectorID, entityID, editedAt)
	return args.Error(0)
}
