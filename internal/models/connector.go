package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

type ConnectorType string

const (
	ConnectorTypeHR      ConnectorType = "hr"
	ConnectorTypeFinance ConnectorType = "finance"
)

func (t ConnectorType) String() string {
	return string(t)
}

func (t ConnectorType) Valid() bool {
	return t == ConnectorTypeHR || t == ConnectorTypeFinance
}

type ConnectorStatus string

const (
	ConnectorStatusEnabled  ConnectorStatus = "enabled"
	ConnectorStatusDisabled ConnectorStatus = "disabled"
)

type AuthType string

const (
	AuthTypeBearer AuthType = "bearer"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "api_key"
)

// Connector is a configured integration with one external system (HR or Finance).
// The connector type is immutable after creation; everything else may change.
type Connector struct {
	ID            int64         `db:"id"`
	Name          string        `db:"name" validate:"required,min=1,max=255"`
	Type          ConnectorType `db:"connector_type" validate:"required,oneof=hr finance"`
	Endpoint      string        `db:"endpoint" validate:"required,url"`
	AuthType      AuthType      `db:"auth_type" validate:"required,oneof=bearer basic api_key"`
	AuthSecretRef string        `db:"auth_secret_ref" validate:"required"`
	Capabilities  Capabilities  `db:"capabilities"`
	MappingConfig string        `db:"mapping_config" validate:"required"`
	RetryPolicy
	RateLimit int             `db:"rate_limit_per_minute" validate:"required,gt=0"`
	Status    ConnectorStatus `db:"status"`
	CreatedBy string          `db:"created_by"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedBy string          `db:"updated_by"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (c *Connector) Enabled() bool {
	return c.Status == ConnectorStatusEnabled
}

func (c *Connector) HasCapability(name string) bool {
	for _, capability := range c.Capabilities {
		if capability == name {
			return true
		}
	}
	return false
}

// RetryPolicy bounds retries for the connector's outbound calls.
type RetryPolicy struct {
	MaxAttempts      int  `db:"max_retry_attempts" validate:"min=0,max=10"`
	BaseDelaySeconds int  `db:"base_delay_seconds" validate:"required,min=1"`
	UseExponential   bool `db:"use_exponential_backoff"`
}

// BackoffDelay returns the delay before attempt n, where attempt 1 is the
// initial call and carries no delay.
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	base := time.Duration(p.BaseDelaySeconds) * time.Second
	if !p.UseExponential {
		return base
	}
	return base << (attempt - 2)
}

// Capabilities is stored as a comma-joined text column.
type Capabilities []string

func (c Capabilities) Value() (driver.Value, error) {
	return strings.Join(c, ","), nil
}

func (c *Capabilities) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*c = nil
		return nil
	}
	if raw == "" {
		*c = nil
		return nil
	}
	*c = strings.Split(raw, ",")
	return nil
}
