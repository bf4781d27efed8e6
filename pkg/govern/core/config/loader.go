package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
	serialization "github.com/fluxgate/fluxgate/pkg/govern/support/util/serialization"
)

const moduleName = "config"

// lookupEnv is swappable in tests.
var lookupEnv = os.LookupEnv

// LoadConfig loads configuration by layering the embedded YAML over the
// defaults and environment variables over both. It is expected to be called
// once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()
	if len(embeddedConfig) > 0 {
		if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
			return nil, exception.New(exception.KindValidation, moduleName, "failed to unmarshal embedded config", err)
		}
	}

	if err := applyEnvOverrides(reflect.ValueOf(&cfg.Fluxgate).Elem(), "FLUXGATE"); err != nil {
		return nil, exception.New(exception.KindValidation, moduleName, "failed to apply environment overrides", err)
	}
	return cfg, nil
}

// ApplyLogging applies the configured log level and sensitive-key masking
// to the global logger state.
func ApplyLogging(cfg *Config) {
	logger.SetLogLevel(cfg.Fluxgate.Logging.Level)
	serialization.SetMaskedKeys(cfg.Fluxgate.Logging.MaskedKeys)
	logger.Infof("Log level set to: %s", cfg.Fluxgate.Logging.Level)
}

// applyEnvOverrides walks the config struct and overrides each leaf with
// the environment variable named after its yaml-tag path, e.g.
// FLUXGATE_DATABASE_DRIVER for Fluxgate.Database.Driver.
func applyEnvOverrides(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("yaml"), ",")[0]
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = strings.ToLower(field.Name)
		}
		key := prefix + "_" + strings.ToUpper(tag)

		fieldValue := v.Field(i)
		if fieldValue.Kind() == reflect.Struct {
			if err := applyEnvOverrides(fieldValue, key); err != nil {
				return err
			}
			continue
		}

		raw, ok := lookupEnv(key)
		if !ok || !fieldValue.CanSet() {
			continue
		}
		switch fieldValue.Kind() {
		case reflect.String:
			fieldValue.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			fieldValue.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return err
			}
			fieldValue.SetBool(b)
		case reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return err
			}
			fieldValue.SetFloat(f)
		}
	}
	return nil
}
