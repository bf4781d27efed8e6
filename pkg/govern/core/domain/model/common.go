// Package model defines the domain model of the governance core: data
// sources, processing jobs with their transformation rule pipelines, workflow
// approvals, data exceptions, and the lineage events that record every state
// change a job undergoes.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// Metadata is a free-form key-value map attached to lineage events,
// exceptions, and data source configurations.
type Metadata map[string]interface{}

// NewMetadata creates a new empty Metadata map.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Copy creates a shallow copy of the Metadata map.
func (m Metadata) Copy() Metadata {
	if m == nil {
		return nil
	}
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Value implements the `driver.Valuer` interface, converting the Metadata to
// a JSON string.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to
// Metadata.
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for Metadata: %T", value)
	}

	if len(b) == 0 {
		*m = make(Metadata)
		return nil
	}
	if err := json.Unmarshal(b, m); err != nil {
		return fmt.Errorf("failed to unmarshal Metadata JSON: %w", err)
	}
	return nil
}

// GetString retrieves the value for the specified key as a string.
func (m Metadata) GetString(key string) (string, bool) {
	val, ok := m[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetBool retrieves the value for the specified key as a bool.
func (m Metadata) GetBool(key string) (bool, bool) {
	val, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}
