package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"esg-sync/internal/mapping"
	"esg-sync/internal/models"
	"esg-sync/internal/repository"
	"esg-sync/pkg/log"
)

var (
	ErrTypeImmutable     = errors.New("connector type is immutable")
	ErrInvalidConnector  = errors.New("invalid connector configuration")
	ErrConnectorDisabled = errors.New("connector is disabled")
)

// Registry owns connector configuration and lifecycle. Mapping configurations
// are validated against the closed per-type schema at save time, never at
// sync time.
type Registry struct {
	connectors repository.ConnectorRepository
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewRegistry(connectors repository.ConnectorRepository) *Registry {
	return &Registry{
		connectors: connectors,
		validate:   validator.New(),
		logger:     log.Logger.With().Str("component", "connector_registry").Logger(),
	}
}

func (r *Registry) Create(connector *models.Connector, createdBy string) (*models.Connector, error) {
	if err := r.validateConnector(connector); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	connector.Status = models.ConnectorStatusEnabled
	connector.CreatedBy = createdBy
	connector.CreatedAt = now
	connector.UpdatedBy = createdBy
	connector.UpdatedAt = now

	created, err := r.connectors.Create(connector)
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Int64("connector_id", created.ID).
		Str("type", string(created.Type)).
		Str("name", created.Name).
		Msg("Connector created")
	return created, nil
}

// Update rejects changes to the connector type; all other fields may change
// and bump the audit stamp.
func (r *Registry) Update(connector *models.Connector, updatedBy string) error {
	existing, err := r.connectors.GetByID(connector.ID)
	if err != nil {
		return err
	}
	if connector.Type != existing.Type {
		return ErrTypeImmutable
	}

	if err := r.validateConnector(connector); err != nil {
		return err
	}

	connector.UpdatedBy = updatedBy
	connector.UpdatedAt = time.Now().UTC()

	if err := r.connectors.Update(connector); err != nil {
		return err
	}

	r.logger.Info().Int64("connector_id", connector.ID).Msg("Connector updated")
	return nil
}

func (r *Registry) Get(id int64) (*models.Connector, error) {
	return r.connectors.GetByID(id)
}

func (r *Registry) List() ([]*models.Connector, error) {
	return r.connectors.List()
}

// Enable is idempotent: enabling an enabled connector is a no-op.
func (r *Registry) Enable(id int64, updatedBy string) error {
	return r.setStatus(id, models.ConnectorStatusEnabled, updatedBy)
}

// Disable is idempotent and does not cancel an in-progress run.
func (r *Registry) Disable(id int64, updatedBy string) error {
	return r.setStatus(id, models.ConnectorStatusDisabled, updatedBy)
}

func (r *Registry) setStatus(id int64, status models.ConnectorStatus, updatedBy string) error {
	connector, err := r.connectors.GetByID(id)
	if err != nil {
		return err
	}
	if connector.Status == status {
		return nil
	}
	return r.connectors.SetStatus(id, status, updatedBy)
}

func (r *Registry) validateConnector(connector *models.Connector) error {
	if !connector.Type.Valid() {
		return fmt.Errorf("%w: unknown connector type %q", ErrInvalidConnector, connector.Type)
	}
	if err := r.validate.Struct(connector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConnector, err)
	}
	if _, err := mapping.ParseConfig(connector.Type, connector.MappingConfig); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConnector, err)
	}
	return nil
}
