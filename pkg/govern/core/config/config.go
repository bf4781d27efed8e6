package config

import (
	"github.com/fluxgate/fluxgate/pkg/govern/adapter/storage"
	inframetrics "github.com/fluxgate/fluxgate/pkg/govern/infrastructure/metrics"
	sqlrepo "github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/sql"
)

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go.
type EmbeddedConfig []byte

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Mode selects the gin mode ("debug", "release" or "test").
	Mode string `yaml:"mode"`
}

// LoggingConfig holds logging configuration. MaskedKeys extends the
// built-in list of sensitive keys hidden from logs and API responses.
type LoggingConfig struct {
	Level      string   `yaml:"level"`
	MaskedKeys []string `yaml:"masked_keys"`
}

// ProcessorConfig sizes the job processor.
type ProcessorConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// IngestionConfig adjusts ingestion gateway behavior.
type IngestionConfig struct {
	DefaultRequiresApproval bool `yaml:"default_requires_approval"`
}

// FluxgateConfig holds all configuration under the "fluxgate" top-level key.
type FluxgateConfig struct {
	Server    ServerConfig               `yaml:"server"`
	Logging   LoggingConfig              `yaml:"logging"`
	Database  sqlrepo.DatabaseConfig     `yaml:"database"`
	Processor ProcessorConfig            `yaml:"processor"`
	Ingestion IngestionConfig            `yaml:"ingestion"`
	Storage   storage.Config             `yaml:"storage"`
	Tracing   inframetrics.TracingConfig `yaml:"tracing"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Fluxgate FluxgateConfig `yaml:"fluxgate"`
}

// NewConfig returns a Config populated with defaults. Values loaded from
// YAML and the environment are merged over these.
func NewConfig() *Config {
	return &Config{
		Fluxgate: FluxgateConfig{
			Server: ServerConfig{
				Host: "0.0.0.0",
				Port: 8080,
				Mode: "release",
			},
			Logging: LoggingConfig{
				Level: "INFO",
			},
			Database: sqlrepo.DatabaseConfig{
				Driver: "memory",
			},
			Processor: ProcessorConfig{
				Workers:   4,
				QueueSize: 256,
			},
			Storage: storage.Config{
				Backend: "local",
			},
			Tracing: inframetrics.TracingConfig{
				ServiceName: "fluxgate",
				Protocol:    "grpc",
				SampleRate:  1.0,
			},
		},
	}
}
