package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"esg-sync/internal/models"
	"esg-sync/internal/repository"
	"esg-sync/pkg/db"
	"esg-sync/pkg/log"
)

type ConnectorRepository struct {
	psql           *db.PostgresDatastore
	circuitBreaker *gobreaker.CircuitBreaker
	retryOptFunc   retryOptionFunc
	logger         zerolog.Logger
}

func NewConnectorRepository(psql *db.PostgresDatastore) *ConnectorRepository {
	return &ConnectorRepository{
		psql:           psql,
		circuitBreaker: newCircuitBreaker("connector_repository"),
		retryOptFunc:   newBackoffStrategy,
		logger:         log.Logger.With().Str("component", "connector_repository").Logger(),
	}
}

func (repo *ConnectorRepository) Create(connector *models.Connector) (*models.Connector, error) {
	query := `INSERT INTO connectors (
			name, connector_type, endpoint, auth_type, auth_secret_ref, capabilities,
			mapping_config, rate_limit_per_minute, max_retry_attempts, base_delay_seconds,
			use_exponential_backoff, status, created_by, created_at, updated_by, updated_at
		) VALUES (
			:name, :connector_type, :endpoint, :auth_type, :auth_secret_ref, :capabilities,
			:mapping_config, :rate_limit_per_minute, :max_retry_attempts, :base_delay_seconds,
			:use_exponential_backoff, :status, :created_by, :created_at, :updated_by, :updated_at
		) RETURNING id`

	rows, err := repo.psql.DB.NamedQuery(query, connector)
	if err != nil {
		repo.logger.Error().Err(err).Str("name", connector.Name).Msg("Failed to insert connector")
		return nil, fmt.Errorf("failed to insert connector: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if scanErr := rows.Scan(&connector.ID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan connector id: %w", scanErr)
		}
	}

	repo.logger.Debug().Int64("connector_id", connector.ID).Msg("Connector created")
	return connector, nil
}

func (repo *ConnectorRepository) Update(connector *models.Connector) error {
	query := `UPDATE connectors SET
			name = :name, endpoint = :endpoint, auth_type = :auth_type,
			auth_secret_ref = :auth_secret_ref, capabilities = :capabilities,
			mapping_config = :mapping_config, rate_limit_per_minute = :rate_limit_per_minute,
			max_retry_attempts = :max_retry_attempts, base_delay_seconds = :base_delay_seconds,
			use_exponential_backoff = :use_exponential_backoff,
			updated_by = :updated_by, updated_at = :updated_at
		WHERE id = :id`

	result, err := repo.psql.DB.NamedExec(query, connector)
	if err != nil {
		repo.logger.Error().Err(err).Int64("connector_id", connector.ID).Msg("Failed to update connector")
		return fmt.Errorf("failed to update connector: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrConnectorNotFound
	}

	return nil
}

func (repo *ConnectorRepository) GetByID(id int64) (*models.Connector, error) {
	return executeResilient(repo.circuitBreaker, repo.retryOptFunc, func() (*models.Connector, error) {
		var connector models.Connector
		query := `SELECT * FROM connectors WHERE id = $1`

		err := repo.psql.DB.Get(&connector, query, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrConnectorNotFound
		} else if err != nil {
			repo.logger.Error().Err(err).Int64("connector_id", id).Msg("Failed to get connector")
			return nil, fmt.Errorf("failed to get connector: %w", err)
		}

		return &connector, nil
	})
}

func (repo *ConnectorRepository) SetStatus(id int64, status models.ConnectorStatus, updatedBy string) error {
	query := `UPDATE connectors SET status = $1, updated_by = $2, updated_at = NOW() WHERE id = $3`

	result, err := repo.psql.DB.Exec(query, status, updatedBy, id)
	if err != nil {
		repo.logger.Error().Err(err).Int64("connector_id", id).Msg("Failed to set connector status")
		return fmt.Errorf("failed to set connector status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repository.ErrConnectorNotFound
	}

	repo.logger.Info().Int64("connector_id", id).Str("status", string(status)).Msg("Connector status changed")
	return nil
}

func (repo *ConnectorRepository) List() ([]*models.Connector, error) {
	return executeResilient(repo.circuitBreaker, repo.retryOptFunc, func() ([]*models.Connector, error) {
		connectors := make([]*models.Connector, 0)
		query := `SELECT * FROM connectors ORDER BY id`

		if err := repo.psql.DB.Select(&connectors, query); err != nil {
			repo.logger.Error().Err(err).Msg("Failed to list connectors")
			return nil, fmt.Errorf("failed to list connectors: %w", err)
		}
		return connectors, nil
	})
}
