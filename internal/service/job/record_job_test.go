package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"esg-sync/internal/external"
	"esg-sync/internal/mapping"
	"esg-sync/internal/models"
	"esg-sync/internal/platform"
	"esg-sync/internal/repository"
	"esg-sync/testutil/testbuilder"
)

type jobFixture struct {
	run         *RunContext
	entityStore *platform.MemoryEntityStore
	syncStates  *testbuilder.MockEntitySyncStateRepository
	syncRecords *testbuilder.MockSyncRecordRepository
	logs        *testbuilder.MockIntegrationLogRepository

	records []*models.SyncRecord
}

func newJobFixture(t *testing.T, approvedOverrideBy string) *jobFixture {
	connector := testbuilder.NewConnectorBuilder().Build()

	cfg, err := mapping.ParseConfig(connector.Type, connector.MappingConfig)
	require.NoError(t, err)

	fixture := &jobFixture{
		run: &RunContext{
			Connector:          connector,
			CorrelationID:      "run-1",
			InitiatedBy:        "alice",
			ApprovedOverrideBy: approvedOverrideBy,
			Mapper:             mapping.NewMapper(cfg),
		},
		entityStore: platform.NewMemoryEntityStore(),
		syncStates:  &testbuilder.MockEntitySyncStateRepository{},
		syncRecords: &testbuilder.MockSyncRecordRepository{},
		logs:        &testbuilder.MockIntegrationLogRepository{},
	}

	fixture.syncRecords.On("Insert", mock.Anything).Run(func(args mock.Arguments) {
		fixture.records = append(fixture.records, args.Get(0).(*models.SyncRecord))
	}).Return(nil)
	fixture.logs.On("Append", mock.Anything).Return(nil)

	return fixture
}

func (f *jobFixture) execute(payload string) *Result {
	recordJob := NewRecordJob(
		f.run, external.Record{Payload: payload},
		f.entityStore, f.syncStates, f.syncRecords, f.logs, platform.NopAuditSink{},
	)
	return recordJob.Execute(context.Background())
}

func TestExecuteImportsNewEntity(t *testing.T) {
	fixture := newJobFixture(t, "")
	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").
		Return(nil, repository.ErrSyncStateNotFound)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	assert.Equal(t, OutcomeImported, result.Outcome)
	assert.Equal(t, "engineering", result.ExternalID)
	require.NoError(t, result.Error)

	// The entity was created with the mapped value.
	entity, err := fixture.entityStore.FindByExternalKey(context.Background(), 1, "engineering")
	require.NoError(t, err)
	assert.Equal(t, "120", entity.Value)
	assert.Equal(t, "headcount", entity.Kind)

	// The sync state now pairs the entity with its external key and value.
	fixture.syncStates.AssertCalled(t, "Upsert", mock.MatchedBy(func(state *models.EntitySyncState) bool {
		return state.EntityID == entity.ID &&
			state.ExternalID == "engineering" &&
			state.LastSyncedValue == "120" &&
			state.ManuallyEditedAt == nil
	}))

	require.Len(t, fixture.records, 1)
	assert.Equal(t, models.SyncRecordStatusImported, fixture.records[0].Status)
	assert.Equal(t, "alice", fixture.records[0].InitiatedBy)
}

func TestExecuteImportAttachesToExistingPlatformEntity(t *testing.T) {
	fixture := newJobFixture(t, "")

	// The platform created this entity itself; the pair was never synced.
	existing, err := fixture.entityStore.Write(context.Background(), 1, &platform.Entity{
		Kind: "headcount", Value: "90", ExternalID: "engineering",
	})
	require.NoError(t, err)

	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").
		Return(nil, repository.ErrSyncStateNotFound)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	assert.Equal(t, OutcomeImported, result.Outcome)

	// The import lands on the pre-existing entity, not a duplicate.
	entity, err := fixture.entityStore.FindByExternalKey(context.Background(), 1, "engineering")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, entity.ID)
	assert.Equal(t, "120", entity.Value)
	_, duplicated := fixture.entityStore.Get(existing.ID + 1)
	assert.False(t, duplicated)

	fixture.syncStates.AssertCalled(t, "Upsert", mock.MatchedBy(func(state *models.EntitySyncState) bool {
		return state.EntityID == existing.ID
	}))

	require.Len(t, fixture.records, 1)
	require.NotNil(t, fixture.records[0].EntityID)
	assert.Equal(t, existing.ID, *fixture.records[0].EntityID)
}

func TestExecuteUpdatesUntouchedEntity(t *testing.T) {
	fixture := newJobFixture(t, "")

	entity, err := fixture.entityStore.Write(context.Background(), 1, &platform.Entity{
		Kind: "headcount", Value: "100", ExternalID: "engineering",
	})
	require.NoError(t, err)

	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").Return(&models.EntitySyncState{
		ConnectorID:     1,
		EntityID:        entity.ID,
		ExternalID:      "engineering",
		LastSyncedValue: "100",
		LastSyncedAt:    time.Now().UTC().Add(-time.Hour),
	}, nil)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	assert.Equal(t, OutcomeUpdated, result.Outcome)

	updated, err := fixture.entityStore.FindByExternalKey(context.Background(), 1, "engineering")
	require.NoError(t, err)
	assert.Equal(t, "120", updated.Value)

	require.Len(t, fixture.records, 1)
	assert.Equal(t, models.SyncRecordStatusUpdated, fixture.records[0].Status)
}

func TestExecuteUnchangedValueSkipsEntityWrite(t *testing.T) {
	fixture := newJobFixture(t, "")

	entity, err := fixture.entityStore.Write(context.Background(), 1, &platform.Entity{
		Kind: "headcount", Value: "120", ExternalID: "engineering",
	})
	require.NoError(t, err)
	writtenAt, _ := fixture.entityStore.Get(entity.ID)

	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").Return(&models.EntitySyncState{
		ConnectorID:     1,
		EntityID:        entity.ID,
		ExternalID:      "engineering",
		LastSyncedValue: "120",
		LastSyncedAt:    time.Now().UTC().Add(-time.Hour),
	}, nil)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	// An unchanged value still counts as updated but the entity is untouched.
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	current, _ := fixture.entityStore.Get(entity.ID)
	assert.Equal(t, writtenAt.UpdatedAt, current.UpdatedAt)

	// The sync timestamp still moves forward.
	fixture.syncStates.AssertCalled(t, "Upsert", mock.Anything)
}

func TestExecutePreservesManualEdit(t *testing.T) {
	fixture := newJobFixture(t, "")

	entity, err := fixture.entityStore.Write(context.Background(), 1, &platform.Entity{
		Kind: "headcount", Value: "130", ExternalID: "engineering",
	})
	require.NoError(t, err)

	editedAt := time.Now().UTC()
	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").Return(&models.EntitySyncState{
		ConnectorID:      1,
		EntityID:         entity.ID,
		ExternalID:       "engineering",
		LastSyncedValue:  "100",
		LastSyncedAt:     editedAt.Add(-time.Hour),
		ManuallyEditedAt: &editedAt,
	}, nil)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	assert.Equal(t, OutcomePreserved, result.Outcome)

	// The manual value survives untouched.
	preserved, err := fixture.entityStore.FindByExternalKey(context.Background(), 1, "engineering")
	require.NoError(t, err)
	assert.Equal(t, "130", preserved.Value)

	// No sync state bump either: the entity still counts as manually edited.
	fixture.syncStates.AssertNotCalled(t, "Upsert", mock.Anything)

	require.Len(t, fixture.records, 1)
	record := fixture.records[0]
	assert.Equal(t, models.SyncRecordStatusConflict, record.Status)
	assert.True(t, record.ConflictDetected)
	require.NotNil(t, record.ConflictResolution)
	assert.Equal(t, models.ConflictResolutionPreserved, *record.ConflictResolution)
	assert.False(t, record.OverwroteApproved)
	assert.Equal(t, `{"employee_group":"engineering","headcount":120}`, record.RawPayload)
}

func TestExecuteOverridesManualEditWhenApproved(t *testing.T) {
	fixture := newJobFixture(t, "compliance-lead")

	entity, err := fixture.entityStore.Write(context.Background(), 1, &platform.Entity{
		Kind: "headcount", Value: "130", ExternalID: "engineering",
	})
	require.NoError(t, err)

	editedAt := time.Now().UTC()
	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").Return(&models.EntitySyncState{
		ConnectorID:      1,
		EntityID:         entity.ID,
		ExternalID:       "engineering",
		LastSyncedValue:  "100",
		LastSyncedAt:     editedAt.Add(-time.Hour),
		ManuallyEditedAt: &editedAt,
	}, nil)
	fixture.syncStates.On("Upsert", mock.Anything).Return(nil)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	assert.Equal(t, OutcomeOverridden, result.Outcome)

	overridden, err := fixture.entityStore.FindByExternalKey(context.Background(), 1, "engineering")
	require.NoError(t, err)
	assert.Equal(t, "120", overridden.Value)

	require.Len(t, fixture.records, 1)
	record := fixture.records[0]
	assert.Equal(t, models.SyncRecordStatusConflict, record.Status)
	assert.True(t, record.OverwroteApproved)
	require.NotNil(t, record.ApprovedOverrideBy)
	assert.Equal(t, "compliance-lead", *record.ApprovedOverrideBy)
}

func TestExecuteRejectsUnmappablePayload(t *testing.T) {
	fixture := newJobFixture(t, "")

	result := fixture.execute(`{"id":"rec-9","headcount":120}`)

	assert.Equal(t, OutcomeRejected, result.Outcome)

	require.Len(t, fixture.records, 1)
	record := fixture.records[0]
	assert.Equal(t, models.SyncRecordStatusRejected, record.Status)
	require.NotNil(t, record.RejectionReason)
	assert.Contains(t, *record.RejectionReason, "employee_group")
	// Best-effort source key keeps the rejected record searchable.
	assert.Equal(t, "rec-9", record.ExternalID)
	assert.Equal(t, `{"id":"rec-9","headcount":120}`, record.RawPayload)

	fixture.syncStates.AssertNotCalled(t, "GetByExternalID", mock.Anything, mock.Anything)
}

func TestExecuteFailsOnStateLoadError(t *testing.T) {
	fixture := newJobFixture(t, "")
	fixture.syncStates.On("GetByExternalID", int64(1), "engineering").
		Return(nil, repository.ErrDatabaseUnavailable)

	result := fixture.execute(`{"employee_group":"engineering","headcount":120}`)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Error(t, result.Error)

	require.Len(t, fixture.records, 1)
	assert.Equal(t, models.SyncRecordStatusFailed, fixture.records[0].Status)
}
