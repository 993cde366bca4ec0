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

// IntegrationLogRepository is append-only: no update or delete statements exist.
type IntegrationLogRepository struct {
	psql           *db.PostgresDatastore
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptFunc   retryOptionFunc
	logger         zerolog.Logger
}

func NewIntegrationLogRepository(psql *db.PostgresDatastore) *IntegrationLogRepository {
	return &IntegrationLogRepository{
		psql:           psql,
		circuitBreaker: newCircuitBreaker("integration_log_repository"),
		retryOptFunc:   newBackoffStrategy,
		logger:         log.Logger.With().Str("component", "integration_log_repository").Logger(),
	}
}

func (repo *IntegrationLogRepository) Append(entry *models.IntegrationLog) error {
	query := `INSERT INTO integration_logs (
			connector_id, correlation_id, operation, status, http_method, endpoint,
			http_status, attempt, error_detail, duration_ms, started_at, finished_at, initiated_by
		) VALUES (
			:connector_id, :correlation_id, :operation, :status, :http_method, :endpoint,
			:http_status, :attempt, :error_detail, :duration_ms, :started_at, :finished_at, :initiated_by
		) RETURNING id`

	rows, err := repo.psql.DB.NamedQuery(query, entry)
	if err != nil {
		repo.logger.Error().Err(err).
			Str("correlation_id", entry.CorrelationID).
			Str("operation", string(entry.Operation)).
			Msg("Failed to append integration log entry")
		return fmt.Errorf("failed to append integration log entry: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if scanErr := rows.Scan(&entry.ID); scanErr != nil {
			return fmt.Errorf("failed to scan integration log id: %w", scanErr)
		}
	}

	return nil
}

func (repo *IntegrationLogRepository) ListByConnector(connectorID int64, limit int) ([]*models.IntegrationLog, error) {
	if limit <= 0 {
		return nil, repository.ErrInvalidQueryParameters
	}

	return executeResilient(repo.circuitBreaker, repo.retryOptFunc, func() ([]*models.IntegrationLog, error) {
		entries := make([]*models.IntegrationLog, 0)
		query := `SELECT * FROM integration_logs WHERE connector_id = $1
			ORDER BY started_at DESC, id DESC LIMIT $2`

		if err := repo.psql.DB.Select(&entries, query, connectorID, limit); err != nil {
			repo.logger.Error().Err(err).Int64("connector_id", connectorID).Msg("Failed to list integration logs")
			return nil, fmt.Errorf("failed to list integration logs: %w", err)
		}
		return entries, nil
	})
}

func (repo *IntegrationLogRepository) ListByCorrelationID(correlationID string) ([]*models.IntegrationLog, error) {
	if correlationID == "" {
		return nil, repository.ErrInvalidQueryParameters
	}

	return executeResilient(repo.circuitBreaker, repo.retryOptFunc, func() ([]*models.IntegrationLog, error) {
		entries := make([]*models.IntegrationLog, 0)
		query := `SELECT * FROM integration_logs WHERE correlation_id = $1 ORDER BY started_at ASC, id ASC`

		if err := repo.psql.DB.Select(&entries, query, correlationID); err != nil {
			repo.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to list integration logs")
			return nil, fmt.Errorf("failed to list integration logs: %w", err)
		}
		return entries, nil
	})
}
