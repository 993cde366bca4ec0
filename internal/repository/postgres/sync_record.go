package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"esg-sync/internal/models"
	"esg-sync/internal/repository"
	"esg-sync/pkg/db"
	"esg-sync/pkg/log"
)

type SyncRecordRepository struct {
	psql           *db.PostgresDatastore
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptFunc   retryOptionFunc
	logger         zerolog.Logger
}

func NewSyncRecordRepository(psql *db.PostgresDatastore) *SyncRecordRepository {
	return &SyncRecordRepository{
		psql:           psql,
		circuitBreaker: newCircuitBreaker("sync_record_repository"),
		retryOptFunc:   newBackoffStrategy,
		logger:         log.Logger.With().Str("component", "sync_record_repository").Logger(),
	}
}

func (repo *SyncRecordRepository) Insert(record *models.SyncRecord) error {
	query := `INSERT INTO sync_records (
			correlation_id, connector_id, external_id, raw_payload, entity_id, status,
			rejection_reason, conflict_detected, conflict_resolution, overwrote_approved_data,
			approved_override_by, initiated_by, synced_at
		) VALUES (
			:correlation_id, :connector_id, :external_id, :raw_payload, :entity_id, :status,
			:rejection_reason, :conflict_detected, :conflict_resolution, :overwrote_approved_data,
			:approved_override_by, :initiated_by, :synced_at
		) RETURNING id`

	rows, err := repo.psql.DB.NamedQuery(query, record)
	if err != nil {
		repo.logger.Error().Err(err).
			Str("correlation_id", record.CorrelationID).
			Str("external_id", record.ExternalID).
			Msg("Failed to insert sync record")
		return fmt.Errorf("failed to insert sync record: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if scanErr := rows.Scan(&record.ID); scanErr != nil {
			return fmt.Errorf("failed to scan sync record id: %w", scanErr)
		}
	}

	return nil
}

func (repo *SyncRecordRepository) ListByConnector(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	query := `SELECT * FROM sync_records WHERE connector_id = $1 ORDER BY synced_at DESC, id DESC LIMIT $2`
	return repo.listRecords(query, connectorID, limit)
}

func (repo *SyncRecordRepository) ListRejected(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	query := `SELECT * FROM sync_records WHERE connector_id = $1 AND status = 'rejected'
		ORDER BY synced_at DESC, id DESC LIMIT $2`
	return repo.listRecords(query, connectorID, limit)
}

func (repo *SyncRecordRepository) ListConflicts(connectorID int64, limit int) ([]*models.SyncRecord, error) {
	query := `SELECT * FROM sync_records WHERE connector_id = $1 AND conflict_detected = TRUE
		ORDER BY synced_at DESC, id DESC LIMIT $2`
	return repo.listRecords(query, connectorID, limit)
}

func (repo *SyncRecordRepository) listRecords(query string, connectorID int64, limit int) ([]*models.SyncRecord, error) {
	if limit <= 0 {
		return nil, repository.ErrInvalidQueryParameters
	}

	return executeResilient(repo.circuitBreaker, repo.retryOptFunc, func() ([]*models.SyncRecord, error) {
		records := make([]*models.SyncRecord, 0)
		if err := repo.psql.DB.Select(&records, query, connectorID, limit); err != nil {
			repo.logger.Error().Err(err).Int64("connector_id", connectorID).Msg("Failed to list sync records")
			return nil, fmt.Errorf("failed to list sync records: %w", err)
		}
		return records, nil
	})
}
