package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MappedRecord is the candidate internal representation of one external record.
type MappedRecord struct {
	ExternalID string
	EntityKind string
	Value      string
	Unit       string
}

// Mapper turns raw external payloads into candidate internal fields using a
// parsed mapping configuration. A mapping failure is record-level: the caller
// rejects that record, it never aborts the run.
type Mapper struct {
	cfg *Config
}

func NewMapper(cfg *Config) *Mapper {
	return &Mapper{cfg: cfg}
}

func (m *Mapper) Map(rawPayload string) (*MappedRecord, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(rawPayload), &fields); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	externalID, err := stringField(fields, m.cfg.ExternalIDField)
	if err != nil {
		return nil, err
	}

	rawValue, ok := fields[m.cfg.ValueField]
	if !ok {
		return nil, fmt.Errorf("missing field %q", m.cfg.ValueField)
	}

	value, err := coerceValue(rawValue)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", m.cfg.ValueField, err)
	}

	return &MappedRecord{
		ExternalID: externalID,
		EntityKind: m.cfg.EntityKind,
		Value:      value,
		Unit:       m.cfg.Unit,
	}, nil
}

func stringField(fields map[string]interface{}, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("missing field %q", name)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("field %q must be a non-empty string", name)
	}
	return value, nil
}

// coerceValue normalizes the external value into its canonical string form.
// JSON numbers arrive as float64; integral values must not keep a trailing ".0"
// or idempotence comparisons against stored values would break.
func coerceValue(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("value must not be empty")
		}
		return v, nil
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
}
