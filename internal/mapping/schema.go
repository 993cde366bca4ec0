package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"esg-sync/internal/models"
)

// Config is the closed, versioned mapping schema stored on a connector.
// Unknown keys are rejected at connector-save time, not at sync time.
type Config struct {
	Version         int    `json:"version" validate:"required,eq=1"`
	ExternalIDField string `json:"external_id_field" validate:"required"`
	ValueField      string `json:"value_field" validate:"required"`
	EntityKind      string `json:"entity_kind" validate:"required"`
	Unit            string `json:"unit,omitempty"`
}

//nolint:gochecknoglobals
var entityKindsByType = map[models.ConnectorType][]string{
	models.ConnectorTypeHR:      {"headcount", "fte", "training_hours", "turnover_rate"},
	models.ConnectorTypeFinance: {"revenue", "spend", "capex", "opex"},
}

// ParseConfig decodes and validates a mapping configuration against the
// closed schema for the given connector type.
func ParseConfig(connectorType models.ConnectorType, raw string) (*Config, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.DisallowUnknownFields()

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid mapping config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid mapping config: %w", err)
	}

	if !isAllowedEntityKind(connectorType, cfg.EntityKind) {
		return nil, fmt.Errorf("entity kind %q is not valid for connector type %q", cfg.EntityKind, connectorType)
	}

	return &cfg, nil
}

func isAllowedEntityKind(connectorType models.ConnectorType, kind string) bool {
	for _, allowed := range entityKindsByType[connectorType] {
		if allowed == kind {
			return true
		}
	}
	return false
}
