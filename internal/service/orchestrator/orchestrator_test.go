package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"esg-sync/internal/external"
	"esg-sync/internal/models"
	"esg-sync/internal/platform"
	"esg-sync/internal/ratelimit"
	"esg-sync/internal/registry"
	"esg-sync/internal/repository"
	"esg-sync/internal/retry"
	"esg-sync/testutil/testbuilder"
)

type orchestratorFixture struct {
	connector   *models.Connector
	connection  *testbuilder.MockConnection
	credentials *testbuilder.MockCredentialResolver
	entityStore *platform.MemoryEntityStore
	syncStates  *testbuilder.MockEntitySyncStateRepository
	syncRecords *testbuilder.MockSyncRecordRepository
	logs        *testbuilder.MockIntegrationLogRepository

	recordsMu sync.Mutex
	records   []*models.SyncRecord
}

func newOrchestratorFixture(connector *models.Connector) *orchestratorFixture {
	fixture := &orchestratorFixture{
		connector:   connector,
		connection:  &testbuilder.MockConnection{},
		credentials: &testbuilder.MockCredentialResolver{},
		entityStore: platform.NewMemoryEntityStore(),
		syncStates:  &testbuilder.MockEntitySyncStateRepository{},
		syncRecords: &testbuilder.MockSyncRecordRepository{},
		logs:        &testbuilder.MockIntegrationLogRepository{},
	}

	fixture.credentials.On("Resolve", mock.Anything, connector.AuthSecretRef).
		Return(&external.Credential{Token: "token"}, nil)
	fixture.logs.On("Append", mock.Anything).Return(nil)
	fixture.syncRecords.On("Insert", mock.Anything).Run(func(args mock.Arguments) {
		fixture.recordsMu.Lock()
		defer fixture.recordsMu.Unlock()
		fixture.records = append(fixture.records, args.Get(0).(*models.SyncRecord))
	}).Return(nil)

	return fixture
}

func (f *orchestratorFixture) build() *SyncOrchestrator {
	connectors := &testbuilder.MockConnectorRepository{}
	connectors.On("GetByID", f.connector.ID).Return(f.connector, nil)
	return f.buildWith(connectors)
}

func (f *orchestratorFixture) buildWith(connectors *testbuilder.MockConnectorRepository) *SyncOrchestrator {
	return NewSyncOrchestrator(
		registry.NewRegistry(connectors),
		f.connection,
		f.credentials,
		ratelimit.NewConnectorLimiter(),
		retry.NewExecutor(f.logs),
		f.entityStore,
		f.syncStates,
		f.syncRecords,
		f.logs,
		platform.NopAuditSink{},
		4,
	)
}

func (f *orchestratorFixture) stateNotFound() {
	f.syncStates.On("GetByExternalID", mock.Anything, mock.Anything).
		Return(nil, repository.ErrSyncStateNotFound)
	f.syncStates.On("Upsert", mock.Anything).Return(nil)
}

func (f *orchestratorFixture) insertedRecords() []*models.SyncRecord {
	f.recordsMu.Lock()
	defer f.recordsMu.Unlock()
	return append([]*models.SyncRecord(nil), f.records...)
}

func TestExecuteSyncMixedOutcomes(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	fixture.connection.On("FetchRecords", mock.Anything, connector).Return([]external.Record{
		{Payload: `{"employee_group":"engineering","headcount":120}`},
		{Payload: `{"employee_group":"sales","headcount":45}`},
		{Payload: `{"employee_group":"ops","headcount":30}`},
		{Payload: `{"employee_group":"hr","headcount":12}`},
		{Payload: `{"group":"legal","headcount":5}`},
	}, nil)

	// engineering and sales were never synced.
	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").
		Return(nil, repository.ErrSyncStateNotFound)
	fixture.syncStates.On("GetByExternalID", int64(1), "sales").
		Return(nil, repository.ErrSyncStateNotFound)

	// ops was synced before and nobody touched it.
	syncedAt := time.Now().UTC().Add(-24 * time.Hour)
	fixture.syncStates.On("GetByExternalID", int64(1), "ops").Return(&models.EntitySyncState{
		ConnectorID: 1, EntityID: 10, ExternalID: "ops",
		LastSyncedValue: "25", LastSyncedAt: syncedAt,
	}, nil)

	// hr was manually corrected after its last sync.
	editedAt := time.Now().UTC()
	fixture.syncStates.On("GetByExternalID", int64(1), "hr").Return(&models.EntitySyncState{
		ConnectorID: 1, EntityID: 11, ExternalID: "hr",
		LastSyncedValue: "10", LastSyncedAt: syncedAt, ManuallyEditedAt: &editedAt,
	}, nil)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "alice", false, "")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.ConflictsPreserved)
	assert.Equal(t, 0, summary.ConflictsOverridden)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 5, summary.TotalFetched)

	// Every fetched record reached exactly one terminal outcome.
	assert.Equal(t, summary.TotalFetched, summary.Processed())

	assert.True(t, summary.Success)
	assert.False(t, summary.Cancelled)
	assert.NotEmpty(t, summary.CorrelationID)

	// Every sync record belongs to this run and names its initiator.
	for _, record := range fixture.insertedRecords() {
		assert.Equal(t, summary.CorrelationID, record.CorrelationID)
		assert.Equal(t, "alice", record.InitiatedBy)
	}
}

func TestExecuteSyncRejectsDisabledConnector(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().WithStatus(models.ConnectorStatusDisabled).Build()
	fixture := newOrchestratorFixture(connector)

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "alice", false, "")

	assert.ErrorIs(t, err, registry.ErrConnectorDisabled)
	assert.Nil(t, summary)
	fixture.connection.AssertNotCalled(t, "FetchRecords", mock.Anything, mock.Anything)
}

func TestExecuteSyncObservesFreshlyCommittedDisable(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)
	fixture.connection.On("FetchRecords", mock.Anything, connector).Return([]external.Record{}, nil)

	// The stored status flips to disabled after the first run starts.
	disabled := testbuilder.NewConnectorBuilder().WithStatus(models.ConnectorStatusDisabled).Build()
	connectors := &testbuilder.MockConnectorRepository{}
	connectors.On("GetByID", connector.ID).Return(connector, nil).Once()
	connectors.On("GetByID", connector.ID).Return(disabled, nil)

	orchestrator := fixture.buildWith(connectors)

	_, err := orchestrator.ExecuteSync(context.Background(), connector.ID, "alice", false, "")
	require.NoError(t, err)

	// The next run re-reads the status instead of acting on a stale snapshot.
	summary, err := orchestrator.ExecuteSync(context.Background(), connector.ID, "alice", false, "")
	assert.ErrorIs(t, err, registry.ErrConnectorDisabled)
	assert.Nil(t, summary)
}

func TestExecuteSyncRejectsConcurrentRun(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	fetchStarted := make(chan struct{})
	releaseFetch := make(chan struct{})
	var startedOnce sync.Once
	fixture.connection.On("FetchRecords", mock.Anything, connector).Run(func(mock.Arguments) {
		startedOnce.Do(func() { close(fetchStarted) })
		<-releaseFetch
	}).Return([]external.Record{}, nil)

	orchestrator := fixture.build()

	firstDone := make(chan error, 1)
	go func() {
		_, err := orchestrator.ExecuteSync(context.Background(), connector.ID, "alice", false, "")
		firstDone <- err
	}()

	<-fetchStarted
	summary, err := orchestrator.ExecuteSync(context.Background(), connector.ID, "bob", false, "")
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, summary)

	close(releaseFetch)
	require.NoError(t, <-firstDone)

	// The marker is released once the first run finishes.
	summary, err = orchestrator.ExecuteSync(context.Background(), connector.ID, "bob", false, "")
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

func TestExecuteSyncFailsOnCredentialError(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := &orchestratorFixture{
		connector:   connector,
		connection:  &testbuilder.MockConnection{},
		credentials: &testbuilder.MockCredentialResolver{},
		entityStore: platform.NewMemoryEntityStore(),
		syncStates:  &testbuilder.MockEntitySyncStateRepository{},
		syncRecords: &testbuilder.MockSyncRecordRepository{},
		logs:        &testbuilder.MockIntegrationLogRepository{},
	}
	fixture.credentials.On("Resolve", mock.Anything, connector.AuthSecretRef).
		Return(nil, errors.New("secret not found"))

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "alice", false, "")

	assert.Error(t, err)
	assert.Nil(t, summary)
	fixture.connection.AssertNotCalled(t, "FetchRecords", mock.Anything, mock.Anything)
	fixture.syncRecords.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestExecuteSyncFailsWhenFetchExhaustsRetries(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().WithRetryPolicy(0, 1, false).Build()
	fixture := newOrchestratorFixture(connector)

	transient := &external.CallError{Kind: external.KindTransient, StatusCode: 503, Err: errors.New("unavailable")}
	fixture.connection.On("FetchRecords", mock.Anything, connector).Return(nil, transient)

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "alice", false, "")

	// Exhausted fetch fails the whole run with no partial summary.
	assert.Error(t, err)
	assert.Nil(t, summary)
	fixture.syncRecords.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestExecuteSyncScheduledRunsRecordSystemUser(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)
	fixture.stateNotFound()

	fixture.connection.On("FetchRecords", mock.Anything, connector).Return([]external.Record{
		{Payload: `{"employee_group":"engineering","headcount":120}`},
	}, nil)

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "", true, "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	records := fixture.insertedRecords()
	require.Len(t, records, 1)
	assert.Equal(t, models.InitiatedBySystem, records[0].InitiatedBy)
}

func TestExecuteSyncEmptyFetchSucceeds(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	fixture.connection.On("FetchRecords", mock.Anything, connector).Return([]external.Record{}, nil)

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "alice", false, "")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 0, summary.TotalFetched)
	assert.Equal(t, 0, summary.Processed())
}

func TestExecuteSyncCancellationSkipsUnstartedRecords(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel while the fetch is in flight so no record job ever starts.
	fixture.connection.On("FetchRecords", mock.Anything, connector).Run(func(mock.Arguments) {
		cancel()
	}).Return([]external.Record{
		{Payload: `{"employee_group":"engineering","headcount":120}`},
		{Payload: `{"employee_group":"sales","headcount":45}`},
	}, nil)

	summary, err := fixture.build().ExecuteSync(ctx, connector.ID, "alice", false, "")
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.TotalFetched)
	assert.Equal(t, 0, summary.Processed())
	assert.Contains(t, summary.Message, "cancelled")
	fixture.syncRecords.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestMarkEntityManuallyEditedFlagsBothStores(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	entity, err := fixture.entityStore.Write(context.Background(), connector.ID, &platform.Entity{
		Kind: "headcount", Value: "120", ExternalID: "engineering",
	})
	require.NoError(t, err)

	fixture.syncStates.On("MarkManuallyEdited", connector.ID, entity.ID, mock.Anything).Return(nil)

	err = fixture.build().MarkEntityManuallyEdited(context.Background(), connector.ID, entity.ID)
	require.NoError(t, err)

	fixture.syncStates.AssertCalled(t, "MarkManuallyEdited", connector.ID, entity.ID, mock.Anything)
}

func TestMarkEntityManuallyEditedUnknownEntity(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	err := fixture.build().MarkEntityManuallyEdited(context.Background(), connector.ID, 9999)

	assert.ErrorIs(t, err, platform.ErrEntityNotFound)
	fixture.syncStates.AssertNotCalled(t, "MarkManuallyEdited", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteSyncOverrideFlowsThroughToRecords(t *testing.T) {
	connector := testbuilder.NewConnectorBuilder().Build()
	fixture := newOrchestratorFixture(connector)

	fixture.connection.On("FetchRecords", mock.Anything, connector).Return([]external.Record{
		{Payload: `{"employee_group":"engineering","headcount":120}`},
	}, nil)

	editedAt := time.Now().UTC()
	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").Return(&models.EntitySyncState{
		ConnectorID: 1, EntityID: 10, ExternalID: "engineering",
		LastSyncedValue: "100", LastSyncedAt: editedAt.Add(-time.Hour), ManuallyEditedAt: &editedAt,
	}, nil)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	summary, err := fixture.build().ExecuteSync(context.Background(), connector.ID, "alice", false, "compliance-lead")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ConflictsOverridden)

	records := fixture.insertedRecords()
	require.Len(t, records, 1)
	assert.True(t, records[0].OverwroteApproved)
	require.NotNil(t, records[0].ApprovedOverrideBy)
	assert.Equal(t, "compliance-lead", *records[0].ApprovedOverrideBy)
}
