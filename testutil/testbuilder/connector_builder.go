package testbuilder

import (
	"time"

	"esg-sync/internal/models"
)

// DefaultMappingConfig maps the payload shape most fixtures use.
const DefaultMappingConfig = `{"version":1,"external_id_field":"employee_group","value_field":"headcount","entity_kind":"headcount","unit":"people"}`

// ConnectorBuilder assembles connector fixtures with sensible defaults so
// tests only state what they care about.
type ConnectorBuilder struct {
	connector models.Connector
}

func NewConnectorBuilder() *ConnectorBuilder {
	now := time.Now().UTC()
	return &ConnectorBuilder{
		connector: models.Connector{
			ID:            1,
			Name:          "workday-hr",
			Type:          models.ConnectorTypeHR,
			Endpoint:      "https://hr.example.com/api/v1",
			AuthType:      models.AuthTypeBearer,
			AuthSecretRef: "secret/connectors/workday",
			Capabilities:  models.Capabilities{"records:read"},
			MappingConfig: DefaultMappingConfig,
			RetryPolicy: models.RetryPolicy{
				MaxAttempts:      3,
				BaseDelaySeconds: 1,
				UseExponential:   false,
			},
			RateLimit: 600,
			Status:    models.ConnectorStatusEnabled,
			CreatedBy: "test-user",
			CreatedAt: now,
			UpdatedBy: "test-user",
			UpdatedAt: now,
		},
	}
}

func (b *ConnectorBuilder) WithID(id int64) *ConnectorBuilder {
	b.connector.ID = id
	return b
}

func (b *ConnectorBuilder) WithName(name string) *ConnectorBuilder {
	b.connector.Name = name
	return b
}

func (b *ConnectorBuilder) WithType(connectorType models.ConnectorType) *ConnectorBuilder {
	b.connector.Type = connectorType
	return b
}

func (b *ConnectorBuilder) WithEndpoint(endpoint string) *ConnectorBuilder {
	b.connector.Endpoint = endpoint
	return b
}

func (b *ConnectorBuilder) WithAuth(authType models.AuthType, secretRef string) *ConnectorBuilder {
	b.connector.AuthType = authType
	b.connector.AuthSecretRef = secretRef
	return b
}

func (b *ConnectorBuilder) WithCapabilities(capabilities ...string) *ConnectorBuilder {
	b.connector.Capabilities = capabilities
	return b
}

func (b *ConnectorBuilder) WithMappingConfig(raw string) *ConnectorBuilder {
	b.connector.MappingConfig = raw
	return b
}

func (b *ConnectorBuilder) WithRetryPolicy(maxAttempts, baseDelaySeconds int, exponential bool) *ConnectorBuilder {
	b.connector.RetryPolicy = models.RetryPolicy{
		MaxAttempts:      maxAttempts,
		BaseDelaySeconds: baseDelaySeconds,
		UseExponential:   exponential,
	}
	return b
}

func (b *ConnectorBuilder) WithRateLimit(perMinute int) *ConnectorBuilder {
	b.connector.RateLimit = perMinute
	return b
}

func (b *ConnectorBuilder) WithStatus(status models.ConnectorStatus) *ConnectorBuilder {
	b.connector.Status = status
	return b
}

func (b *ConnectorBuilder) Build() *models.Connector {
	connector := b.connector
	return &connector
}
