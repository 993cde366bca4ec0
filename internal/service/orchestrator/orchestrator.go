package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"esg-sync/internal/external"
	"esg-sync/internal/mapping"
	"esg-sync/internal/models"
	"esg-sync/internal/platform"
	"esg-sync/internal/ratelimit"
	"esg-sync/internal/registry"
	"esg-sync/internal/repository"
	"esg-sync/internal/retry"
	"esg-sync/internal/service/job"
	"esg-sync/pkg/log"
)

var ErrRunInProgress = errors.New("sync already running for this connector")

// SyncOrchestrator drives one end-to-end synchronization run per connector:
// fetch → map → reconcile → persist → summarize. At most one run may be in
// flight per connector; a second request is rejected immediately, not queued.
type SyncOrchestrator struct {
	registry    *registry.Registry
	connection  external.Connection
	credentials external.CredentialResolver
	limiter     *ratelimit.ConnectorLimiter
	retryExec   *retry.Executor
	entityStore platform.EntityStore
	syncStates  repository.EntitySyncStateRepository
	syncRecords repository.SyncRecordRepository
	logs        repository.IntegrationLogRepository
	audit       platform.AuditSink
	concurrency int
	logger      zerolog.Logger

	// mu guards activeRuns. The status snapshot is read and the in-flight
	// marker set under the same lock, so the freshest committed status decides
	// whether a run starts; a disable committed after the marker is set takes
	// effect on the next run.
	mu         sync.Mutex
	activeRuns map[int64]struct{}
}

func NewSyncOrchestrator(
	reg *registry.Registry,
	connection external.Connection,
	credentials external.CredentialResolver,
	limiter *ratelimit.ConnectorLimiter,
	retryExec *retry.Executor,
	entityStore platform.EntityStore,
	syncStates repository.EntitySyncStateRepository,
	syncRecords repository.SyncRecordRepository,
	logs repository.IntegrationLogRepository,
	audit platform.AuditSink,
	concurrency int,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		registry:    reg,
		connection:  connection,
		credentials: credentials,
		limiter:     limiter,
		retryExec:   retryExec,
		entityStore: entityStore,
		syncStates:  syncStates,
		syncRecords: syncRecords,
		logs:        logs,
		audit:       audit,
		concurrency: concurrency,
		activeRuns:  make(map[int64]struct{}),
		logger:      log.Logger.With().Str("component", "sync_orchestrator").Logger(),
	}
}

func (o *SyncOrchestrator) ExecuteSync(
	ctx context.Context,
	connectorID int64,
	initiatingUser string,
	isScheduled bool,
	approvedOverrideBy string,
) (*models.RunSummary, error) {
	if isScheduled {
		initiatingUser = models.InitiatedBySystem
	}

	connector, err := o.acquireRun(connectorID)
	if err != nil {
		return nil, err
	}
	defer o.releaseRun(connectorID)

	correlationID := uuid.NewString()
	startedAt := time.Now().UTC()

	logger := o.logger.With().
		Int64("connector_id", connectorID).
		Str("correlation_id", correlationID).
		Str("initiated_by", initiatingUser).
		Logger()
	logger.Info().Msg("Starting sync run")

	// Probe-equivalent pre-check: bad credentials fail the run before any
	// record work, with no partial summary.
	if _, err := o.credentials.Resolve(ctx, connector.AuthSecretRef); err != nil {
		logger.Error().Err(err).Msg("Credential pre-check failed")
		return nil, fmt.Errorf("credential pre-check failed: %w", err)
	}

	mappingConfig, err := mapping.ParseConfig(connector.Type, connector.MappingConfig)
	if err != nil {
		logger.Error().Err(err).Msg("Stored mapping config failed to parse")
		return nil, fmt.Errorf("invalid mapping config on connector %d: %w", connectorID, err)
	}

	records, err := o.fetchRecords(ctx, connector, correlationID, initiatingUser)
	if err != nil {
		logger.Error().Err(err).Msg("Fetch failed after exhausting retry policy")
		return nil, fmt.Errorf("failed to fetch external records: %w", err)
	}

	runCtx := &job.RunContext{
		Connector:          connector,
		CorrelationID:      correlationID,
		InitiatedBy:        initiatingUser,
		ApprovedOverrideBy: approvedOverrideBy,
		Mapper:             mapping.NewMapper(mappingConfig),
	}

	summary := o.processRecords(ctx, runCtx, records)
	summary.ConnectorID = connectorID
	summary.CorrelationID = correlationID
	summary.TotalFetched = len(records)
	summary.StartedAt = startedAt
	summary.FinishedAt = time.Now().UTC()
	summary.Cancelled = ctx.Err() != nil
	summary.Success = summary.Failed == 0 && !summary.Cancelled
	summary.Message = summaryMessage(summary)

	o.logSummary(logger, summary)
	return summary, nil
}

// acquireRun reads the connector snapshot and sets the in-flight marker in
// the same critical section, so the status check cannot act on a snapshot
// taken before an intervening disable was committed.
func (o *SyncOrchestrator) acquireRun(connectorID int64) (*models.Connector, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, running := o.activeRuns[connectorID]; running {
		return nil, ErrRunInProgress
	}

	connector, err := o.registry.Get(connectorID)
	if err != nil {
		return nil, err
	}
	if !connector.Enabled() {
		return nil, registry.ErrConnectorDisabled
	}
	o.activeRuns[connectorID] = struct{}{}

	return connector, nil
}

func (o *SyncOrchestrator) releaseRun(connectorID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, connectorID)
}

func (o *SyncOrchestrator) fetchRecords(
	ctx context.Context,
	connector *models.Connector,
	correlationID, initiatingUser string,
) ([]external.Record, error) {
	if err := o.limiter.Acquire(ctx, connector.ID, connector.RateLimit); err != nil {
		return nil, fmt.Errorf("rate limiter wait interrupted: %w", err)
	}

	call := retry.Call{
		ConnectorID:   connector.ID,
		CorrelationID: correlationID,
		Operation:     models.OperationSyncFetch,
		HTTPMethod:    http.MethodGet,
		Endpoint:      connector.Endpoint,
		InitiatedBy:   initiatingUser,
	}

	return retry.Execute(ctx, o.retryExec, call, connector.RetryPolicy,
		func(ctx context.Context) ([]external.Record, error) {
			return o.connection.FetchRecords(ctx, connector)
		})
}

func (o *SyncOrchestrator) processRecords(
	ctx context.Context,
	runCtx *job.RunContext,
	records []external.Record,
) *models.RunSummary {
	summary := &models.RunSummary{}
	if len(records) == 0 {
		o.logger.Warn().Str("correlation_id", runCtx.CorrelationID).Msg("External system returned no records")
		return summary
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.concurrency)
	results := make(chan *job.Result, len(records))
	entityLocks := newKeyedMutex()

	for _, record := range records {
		wg.Add(1)
		go o.executeJob(ctx, runCtx, record, &wg, semaphore, entityLocks, results)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		o.tally(summary, result)
	}

	return summary
}

func (o *SyncOrchestrator) executeJob(
	ctx context.Context,
	runCtx *job.RunContext,
	record external.Record,
	wg *sync.WaitGroup,
	semaphore chan struct{},
	entityLocks *keyedMutex,
	results chan *job.Result,
) {
	defer wg.Done()

	// Cancellation is cooperative and happens between records: a record that
	// has not started is skipped, a record in flight finishes.
	select {
	case <-ctx.Done():
		results <- &job.Result{Outcome: job.OutcomeSkipped, Error: ctx.Err()}
		return
	default:
	}

	select {
	case semaphore <- struct{}{}:
		defer func() { <-semaphore }()
	case <-ctx.Done():
		results <- &job.Result{Outcome: job.OutcomeSkipped, Error: ctx.Err()}
		return
	}

	// Two records resolving to the same internal entity must not interleave
	// their writes. The external key determines the entity pairing.
	unlock := entityLocks.lock(recordLockKey(runCtx, record))
	defer unlock()

	recordJob := job.NewRecordJob(runCtx, record, o.entityStore, o.syncStates, o.syncRecords, o.logs, o.audit)
	results <- recordJob.Execute(ctx)
}

func (o *SyncOrchestrator) tally(summary *models.RunSummary, result *job.Result) {
	switch result.Outcome {
	case job.OutcomeImported:
		summary.Imported++
	case job.OutcomeUpdated:
		summary.Updated++
	case job.OutcomePreserved:
		summary.ConflictsPreserved++
	case job.OutcomeOverridden:
		summary.ConflictsOverridden++
	case job.OutcomeRejected:
		summary.Rejected++
	case job.OutcomeFailed:
		summary.Failed++
		o.logger.Error().
			Err(result.Error).
			Str("external_id", result.ExternalID).
			Msg("Record failed with an internal error")
	default:
		// skipped due to cancellation; reflected via summary.Cancelled
	}
}

func (o *SyncOrchestrator) logSummary(logger zerolog.Logger, summary *models.RunSummary) {
	logger.Info().
		Int("total_fetched", summary.TotalFetched).
		Int("imported", summary.Imported).
		Int("updated", summary.Updated).
		Int("conflicts_preserved", summary.ConflictsPreserved).
		Int("conflicts_overridden", summary.ConflictsOverridden).
		Int("rejected", summary.Rejected).
		Int("failed", summary.Failed).
		Bool("cancelled", summary.Cancelled).
		Bool("success", summary.Success).
		Msg("Sync run completed")
}

func summaryMessage(summary *models.RunSummary) string {
	switch {
	case summary.Cancelled:
		return fmt.Sprintf("run cancelled after %d of %d records", summary.Processed(), summary.TotalFetched)
	case summary.Failed > 0:
		return fmt.Sprintf("completed with %d failed records", summary.Failed)
	default:
		return fmt.Sprintf("processed %d records", summary.TotalFetched)
	}
}

func recordLockKey(runCtx *job.RunContext, record external.Record) string {
	if mapped, err := runCtx.Mapper.Map(record.Payload); err == nil {
		return mapped.ExternalID
	}
	return record.Payload
}

// GetSyncHistory returns the most recent sync records for a connector.
func (o *SyncOrchestrator) GetSyncHistory(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	return o.syncRecords.ListByConnector(connectorID, limit)
}

// GetRejectedRecords returns recent records rejected by mapping or validation.
func (o *SyncOrchestrator) GetRejectedRecords(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	return o.syncRecords.ListRejected(connectorID, limit)
}

// GetConflicts returns recent records where a conflict was detected,
// regardless of how it was resolved.
func (o *SyncOrchestrator) GetConflicts(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	return o.syncRecords.ListConflicts(connectorID, limit)
}

// GetLogsByCorrelationID reconstructs the full trace of one run.
func (o *SyncOrchestrator) GetLogsByCorrelationID(correlationID string) ([]*models.IntegrationLog, error) {
	return o.logs.ListByCorrelationID(correlationID)
}

// MarkEntityManuallyEdited records a human edit of a synced entity, on the
// platform entity and on the sync-state pairing, so the next run treats the
// pair as a conflict until an attributed override resolves it. The platform
// calls this whenever a user edits or approves an entity a connector owns.
func (o *SyncOrchestrator) MarkEntityManuallyEdited(ctx context.Context, connectorID, entityID int64) error {
	if err := o.entityStore.MarkManuallyEdited(ctx, entityID); err != nil {
		return fmt.Errorf("failed to mark entity %d as manually edited: %w", entityID, err)
	}
	return o.syncStates.MarkManuallyEdited(connectorID, entityID, time.Now().UTC())
}
