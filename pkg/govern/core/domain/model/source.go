package model

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// SourceType identifies the kind of origin a DataSource describes.
type SourceType string

const (
	SourceTypeAPI   SourceType = "API"
	SourceTypeSwift SourceType = "SWIFT"
	SourceTypeBatch SourceType = "BATCH"
)

// String returns the string representation of the SourceType.
func (t SourceType) String() string {
	return string(t)
}

// IsValid checks whether the SourceType is one of the known kinds.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeAPI, SourceTypeSwift, SourceTypeBatch:
		return true
	default:
		return false
	}
}

// requiredConnectionKeys maps each source type to the connection_config keys
// it must carry before activation.
var requiredConnectionKeys = map[SourceType][]string{
	SourceTypeAPI:   {"endpoint"},
	SourceTypeSwift: {"network"},
	SourceTypeBatch: {"format"},
}

// batchFormats are the accepted values for a BATCH source's "format" key.
var batchFormats = map[string]struct{}{
	"csv":  {},
	"json": {},
}

// DataSource is a configured origin of data. Jobs reference a source by id;
// they never own a copy.
type DataSource struct {
	ID               string
	Name             string
	Description      string
	SourceType       SourceType
	ConnectionConfig Metadata
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDataSource creates a new DataSource in the inactive state.
func NewDataSource(name, description string, sourceType SourceType, connectionConfig Metadata) *DataSource {
	now := time.Now()
	if connectionConfig == nil {
		connectionConfig = NewMetadata()
	}
	return &DataSource{
		ID:               NewID(),
		Name:             name,
		Description:      description,
		SourceType:       sourceType,
		ConnectionConfig: connectionConfig,
		IsActive:         false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ValidateConnectionConfig checks the connection_config against the closed
// per-source_type schema. All violations are collected and reported together.
func (s *DataSource) ValidateConnectionConfig() error {
	var result *multierror.Error

	if !s.SourceType.IsValid() {
		result = multierror.Append(result, fmt.Errorf("unknown source type %q", s.SourceType))
		return result.ErrorOrNil()
	}

	for _, key := range requiredConnectionKeys[s.SourceType] {
		val, ok := s.ConnectionConfig.GetString(key)
		if !ok || val == "" {
			result = multierror.Append(result, fmt.Errorf("connection_config key %q is required for source type %s", key, s.SourceType))
		}
	}

	if s.SourceType == SourceTypeBatch {
		if format, ok := s.ConnectionConfig.GetString("format"); ok {
			if _, known := batchFormats[format]; !known {
				result = multierror.Append(result, fmt.Errorf("connection_config format %q is not supported (csv, json)", format))
			}
		}
	}

	return result.ErrorOrNil()
}

// Activate marks the source active after validating its connection config.
func (s *DataSource) Activate() error {
	if err := s.ValidateConnectionConfig(); err != nil {
		return err
	}
	s.IsActive = true
	s.UpdatedAt = time.Now()
	return nil
}

// Deactivate marks the source inactive.
func (s *DataSource) Deactivate() {
	s.IsActive = false
	s.UpdatedAt = time.Now()
}

// Promotable reports whether jobs ingested from this source feed a
// promotable destination and therefore require a DATA_PROMOTION approval.
func (s *DataSource) Promotable() bool {
	promotable, ok := s.ConnectionConfig.GetBool("promotable")
	return ok && promotable
}
