package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"esg-sync/internal/models"
	"esg-sync/internal/repository"
	"esg-sync/pkg/db"
	"esg-sync/pkg/log"
)

type EntitySyncStateRepository struct {
	psql           *db.PostgresDatastore
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptFunc   retryOptionFunc
	logger         zerolog.Logger
}

func NewEntitySyncStateRepository(psql *db.PostgresDatastore) *EntitySyncStateRepository {
	return &EntitySyncStateRepository{
		psql:           psql,
		circuitBreaker: newCircuitBreaker("entity_sync_state_repository"),
		retryOptFunc:   newBackoffStrategy,
		logger:         log.Logger.With().Str("component", "entity_sync_state_repository").Logger(),
	}
}

func (repo *EntitySyncStateRepository) GetByEntity(connectorID, entityID int64) (*models.EntitySyncState, error) {
	query := `SELECT * FROM entity_sync_states WHERE connector_id = $1 AND entity_id = $2`
	return repo.getState(query, connectorID, entityID)
}

func (repo *EntitySyncStateRepository) GetByExternalID(connectorID int64, externalID string) (*models.EntitySyncState, error) {
	query := `SELECT * FROM entity_sync_states WHERE connector_id = $1 AND external_id = $2`
	return repo.getState(query, connectorID, externalID)
}

func (repo *EntitySyncStateRepository) getState(query string, args ...interface{}) (*models.EntitySyncState, error) {
	return executeResilient(repo.circuitBreaker, repo.retryOptFunc, func() (*models.EntitySyncState, error) {
		var state models.EntitySyncState

		err := repo.psql.DB.Get(&state, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSyncStateNotFound
		} else if err != nil {
			repo.logger.Error().Err(err).Msg("Failed to get entity sync state")
			return nil, fmt.Errorf("failed to get entity sync state: %w", err)
		}

		return &state, nil
	})
}

func (repo *EntitySyncStateRepository) Upsert(state *models.EntitySyncState) error {
	query := `INSERT INTO entity_sync_states (
			connector_id, entity_id, external_id, last_synced_value, last_synced_at, manually_edited_at
		) VALUES (
			:connector_id, :entity_id, :external_id, :last_synced_value, :last_synced_at, :manually_edited_at
		)
		ON CONFLICT (connector_id, entity_id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			last_synced_value = EXCLUDED.last_synced_value,
			last_synced_at = EXCLUDED.last_synced_at,
			manually_edited_at = EXCLUDED.manually_edited_at`

	if _, err := repo.psql.DB.NamedExec(query, state); err != nil {
		repo.logger.Error().Err(err).
			Int64("connector_id", state.ConnectorID).
			Int64("entity_id", state.EntityID).
			Msg("Failed to upsert entity sync state")
		return fmt.Errorf("failed to upsert entity sync state: %w", err)
	}

	return nil
}

func (repo *EntitySyncStateRepository) MarkManuallyEdited(connectorID, entityID int64, editedAt time.Time) error {
	query := `UPDATE entity_sync_states SET manually_edited_at = $1
		WHERE connector_id = $2 AND entity_id = $3`

	result, err := repo.psql.DB.Exec(query, editedAt, connectorID, entityID)
	if err != nil {
		repo.logger.Error().Err(err).
			Int64("connector_id", connectorID).
			Int64("entity_id", entityID).
			Msg("Failed to mark entity as manually edited")
		return fmt.Errorf("failed to mark entity as manually edited: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrSyncStateNotFound
	}

	return nil
}
