package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"esg-sync/internal/external"
	"esg-sync/internal/mapping"
	"esg-sync/internal/models"
	"esg-sync/internal/platform"
	"esg-sync/internal/repository"
	"esg-sync/internal/service/resolver"
	"esg-sync/pkg/log"
)

// Outcome categorizes how one record ended.
type Outcome string

const (
	OutcomeImported   Outcome = "imported"
	OutcomeUpdated    Outcome = "updated"
	OutcomePreserved  Outcome = "preserved"
	OutcomeOverridden Outcome = "overridden"
	OutcomeRejected   Outcome = "rejected"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
)

type Result struct {
	ExternalID string
	Outcome    Outcome
	Error      error
}

// RunContext carries the run-scoped values shared by all record jobs.
type RunContext struct {
	Connector          *models.Connector
	CorrelationID      string
	InitiatedBy        string
	ApprovedOverrideBy string
	Mapper             *mapping.Mapper
}

// RecordJob processes one external record: map, classify against internal
// state, persist the outcome. A failure here is isolated to this record and
// never aborts the run.
type RecordJob struct {
	run         *RunContext
	record      external.Record
	entityStore platform.EntityStore
	syncStates  repository.EntitySyncStateRepository
	syncRecords repository.SyncRecordRepository
	logs        repository.IntegrationLogRepository
	audit       platform.AuditSink
	startedAt   time.Time
	logger      zerolog.Logger
}

func NewRecordJob(
	run *RunContext,
	record external.Record,
	entityStore platform.EntityStore,
	syncStates repository.EntitySyncStateRepository,
	syncRecords repository.SyncRecordRepository,
	logs repository.IntegrationLogRepository,
	audit platform.AuditSink,
) *RecordJob {
	return &RecordJob{
		run:         run,
		record:      record,
		entityStore: entityStore,
		syncStates:  syncStates,
		syncRecords: syncRecords,
		logs:        logs,
		audit:       audit,
		logger: log.Logger.With().
			Str("component", "record_job").
			Int64("connector_id", run.Connector.ID).
			Str("correlation_id", run.CorrelationID).
			Logger(),
	}
}

func (j *RecordJob) Execute(ctx context.Context) *Result {
	j.startedAt = time.Now().UTC()
	mapped, err := j.run.Mapper.Map(j.record.Payload)
	if err != nil {
		j.logger.Info().Err(err).Msg("Record rejected by mapping")
		return j.persistRejected(err.Error())
	}

	logger := j.logger.With().Str("external_id", mapped.ExternalID).Logger()

	state, err := j.loadSyncState(mapped.ExternalID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load entity sync state")
		return j.persistFailed(mapped, err)
	}

	decision := resolver.Resolve(state, mapped.Value, j.run.ApprovedOverrideBy)
	logger.Debug().Str("decision", string(decision)).Msg("Record classified")

	switch decision {
	case resolver.DecisionImport:
		return j.applyImport(ctx, mapped)
	case resolver.DecisionUpdate:
		return j.applyUpdate(ctx, mapped, state)
	case resolver.DecisionNoOp:
		return j.applyNoOp(mapped, state)
	case resolver.DecisionPreserve:
		return j.applyPreserve(mapped, state)
	case resolver.DecisionOverride:
		return j.applyOverride(ctx, mapped, state)
	}

	return j.persistFailed(mapped, nil)
}

// loadSyncState returns nil state when the pair has never been synced.
func (j *RecordJob) loadSyncState(externalID string) (*models.EntitySyncState, error) {
	state, err := j.syncStates.GetByExternalID(j.run.Connector.ID, externalID)
	if err == repository.ErrSyncStateNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return state, nil
}

func (j *RecordJob) applyImport(ctx context.Context, mapped *mapping.MappedRecord) *Result {
	candidate := &platform.Entity{
		Kind:       mapped.EntityKind,
		Value:      mapped.Value,
		Unit:       mapped.Unit,
		ExternalID: mapped.ExternalID,
	}

	// The pair was never synced, but the platform may already hold an entity
	// under this external key. Attach to it instead of creating a duplicate.
	existing, err := j.entityStore.FindByExternalKey(ctx, j.run.Connector.ID, mapped.ExternalID)
	if err == nil {
		candidate.ID = existing.ID
	} else if err != platform.ErrEntityNotFound {
		return j.persistFailed(mapped, err)
	}

	entity, err := j.entityStore.Write(ctx, j.run.Connector.ID, candidate)
	if err != nil {
		return j.persistFailed(mapped, err)
	}

	if err := j.upsertState(entity.ID, mapped); err != nil {
		return j.persistFailed(mapped, err)
	}

	record := j.newSyncRecord(mapped, &entity.ID)
	record.Status = models.SyncRecordStatusImported
	return j.persistRecord(record, OutcomeImported)
}

func (j *RecordJob) applyUpdate(ctx context.Context, mapped *mapping.MappedRecord, state *models.EntitySyncState) *Result {
	entity, err := j.entityStore.Write(ctx, j.run.Connector.ID, &platform.Entity{
		ID:         state.EntityID,
		Kind:       mapped.EntityKind,
		Value:      mapped.Value,
		Unit:       mapped.Unit,
		ExternalID: mapped.ExternalID,
	})
	if err != nil {
		return j.persistFailed(mapped, err)
	}

	if err := j.upsertState(entity.ID, mapped); err != nil {
		return j.persistFailed(mapped, err)
	}

	record := j.newSyncRecord(mapped, &entity.ID)
	record.Status = models.SyncRecordStatusUpdated
	return j.persistRecord(record, OutcomeUpdated)
}

// applyNoOp bumps the sync timestamp without touching the entity; the value
// is unchanged so there is nothing to write.
func (j *RecordJob) applyNoOp(mapped *mapping.MappedRecord, state *models.EntitySyncState) *Result {
	if err := j.upsertState(state.EntityID, mapped); err != nil {
		return j.persistFailed(mapped, err)
	}

	record := j.newSyncRecord(mapped, &state.EntityID)
	record.Status = models.SyncRecordStatusUpdated
	return j.persistRecord(record, OutcomeUpdated)
}

func (j *RecordJob) applyPreserve(mapped *mapping.MappedRecord, state *models.EntitySyncState) *Result {
	record := j.newSyncRecord(mapped, &state.EntityID)
	record.SetConflictPreserved()
	return j.persistRecord(record, OutcomePreserved)
}

func (j *RecordJob) applyOverride(ctx context.Context, mapped *mapping.MappedRecord, state *models.EntitySyncState) *Result {
	entity, err := j.entityStore.Write(ctx, j.run.Connector.ID, &platform.Entity{
		ID:         state.EntityID,
		Kind:       mapped.EntityKind,
		Value:      mapped.Value,
		Unit:       mapped.Unit,
		ExternalID: mapped.ExternalID,
	})
	if err != nil {
		return j.persistFailed(mapped, err)
	}

	if err := j.upsertState(entity.ID, mapped); err != nil {
		return j.persistFailed(mapped, err)
	}

	record := j.newSyncRecord(mapped, &entity.ID)
	record.SetConflictOverridden(j.run.ApprovedOverrideBy)

	j.logger.Info().
		Str("external_id", mapped.ExternalID).
		Str("approved_override_by", j.run.ApprovedOverrideBy).
		Msg("Approved data overwritten by explicit override")
	return j.persistRecord(record, OutcomeOverridden)
}

// upsertState clears manually_edited_at: after a successful sync the entity
// reflects the external value again.
func (j *RecordJob) upsertState(entityID int64, mapped *mapping.MappedRecord) error {
	return j.syncStates.Upsert(&models.EntitySyncState{
		ConnectorID:     j.run.Connector.ID,
		EntityID:        entityID,
		ExternalID:      mapped.ExternalID,
		LastSyncedValue: mapped.Value,
		LastSyncedAt:    time.Now().UTC(),
	})
}

func (j *RecordJob) newSyncRecord(mapped *mapping.MappedRecord, entityID *int64) *models.SyncRecord {
	return &models.SyncRecord{
		CorrelationID: j.run.CorrelationID,
		ConnectorID:   j.run.Connector.ID,
		ExternalID:    mapped.ExternalID,
		RawPayload:    j.record.Payload,
		EntityID:      entityID,
		InitiatedBy:   j.run.InitiatedBy,
		SyncedAt:      time.Now().UTC(),
	}
}

func (j *RecordJob) persistRejected(reason string) *Result {
	record := &models.SyncRecord{
		CorrelationID: j.run.CorrelationID,
		ConnectorID:   j.run.Connector.ID,
		ExternalID:    rejectedExternalID(j.record.Payload),
		RawPayload:    j.record.Payload,
		InitiatedBy:   j.run.InitiatedBy,
		SyncedAt:      time.Now().UTC(),
	}
	record.SetRejected(reason)
	return j.persistRecord(record, OutcomeRejected)
}

func (j *RecordJob) persistFailed(mapped *mapping.MappedRecord, cause error) *Result {
	record := j.newSyncRecord(mapped, nil)
	record.Status = models.SyncRecordStatusFailed
	if cause != nil {
		reason := cause.Error()
		record.RejectionReason = &reason
	}

	result := j.persistRecord(record, OutcomeFailed)
	result.Error = cause
	return result
}

// rejectedExternalID pulls a best-effort source key out of an unmappable
// payload so the rejected record is still searchable.
func rejectedExternalID(payload string) string {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return ""
	}
	for _, key := range []string{"id", "external_id", "record_id"} {
		if value, ok := fields[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func (j *RecordJob) persistRecord(record *models.SyncRecord, outcome Outcome) *Result {
	if err := j.syncRecords.Insert(record); err != nil {
		j.logger.Error().Err(err).Str("external_id", record.ExternalID).Msg("Failed to persist sync record")
		j.appendPersistLog(record.ExternalID, err)
		return &Result{ExternalID: record.ExternalID, Outcome: OutcomeFailed, Error: err}
	}

	j.appendPersistLog(record.ExternalID, nil)
	return &Result{ExternalID: record.ExternalID, Outcome: outcome}
}

func (j *RecordJob) appendPersistLog(externalID string, persistErr error) {
	finishedAt := time.Now().UTC()
	status := models.LogStatusSuccess
	var errorDetail *string
	if persistErr != nil {
		status = models.LogStatusFailure
		detail := persistErr.Error()
		errorDetail = &detail
	}

	entry := &models.IntegrationLog{
		ConnectorID:   j.run.Connector.ID,
		CorrelationID: j.run.CorrelationID,
		Operation:     models.OperationSyncPersist,
		Status:        status,
		Attempt:       1,
		ErrorDetail:   errorDetail,
		DurationMs:    finishedAt.Sub(j.startedAt).Milliseconds(),
		StartedAt:     j.startedAt,
		FinishedAt:    finishedAt,
		InitiatedBy:   j.run.InitiatedBy,
	}

	if err := j.logs.Append(entry); err != nil {
		j.logger.Error().Err(err).Str("external_id", externalID).Msg("Failed to append persist log entry")
	}
	if err := j.audit.Record(context.Background(), entry); err != nil {
		j.logger.Error().Err(err).Str("external_id", externalID).Msg("Failed to record persist entry in audit sink")
	}
}
