// Package config loads scenex settings: defaults, then a YAML file, then
// SCENEX_* environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("scenex.yaml").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/logging"
)

// Config is the complete scenex configuration.
type Config struct {
	Policy api.Policy     `yaml:"policy"`
	Fetch  FetchConfig    `yaml:"fetch" env:"FETCH"`
	Export ExportConfig   `yaml:"export" env:"EXPORT"`
	Log    logging.Config `yaml:"log" env:"LOG"`
}

// FetchConfig tunes property requests.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxAttempts       int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// ExportConfig selects the artifact shape and destination.
type ExportConfig struct {
	Format           string `yaml:"format" env:"FORMAT"`
	Mode             string `yaml:"mode" env:"MODE"`
	OutputDir        string `yaml:"output_dir" env:"OUTPUT_DIR"`
	MaxArtifactBytes int64  `yaml:"max_artifact_bytes" env:"MAX_ARTIFACT_BYTES"`
	MaxProperties    int    `yaml:"max_properties" env:"MAX_PROPERTIES"`
	ProgressEvery    int    `yaml:"progress_every" env:"PROGRESS_EVERY"`
	MetricsFile      string `yaml:"metrics_file" env:"METRICS_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Policy: api.DefaultPolicy(),
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 1,
		},
		Export: ExportConfig{
			Format:        string(api.FormatXLSX),
			Mode:          string(api.ModeRich),
			OutputDir:     ".",
			MaxProperties: 50,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the policy table and the enumerated settings.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if _, err := api.ParseFormat(c.Export.Format); err != nil {
		return err
	}
	if _, err := api.ParseMode(c.Export.Mode); err != nil {
		return err
	}
	if c.Fetch.Timeout < 0 || c.Fetch.MaxAttempts < 0 || c.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch settings must not be negative")
	}
	return nil
}

// Loader assembles a Config.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

func NewLoader() *Loader {
	return &Loader{envPrefix: "SCENEX"}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a check run after Validate.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load applies defaults, the config file (if set) and the environment, in
// that order, then validates.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", l.configPath, err)
		}
	}
	if err := setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// setFieldsFromEnv walks v's fields carrying an env tag. Nested structs
// extend the prefix: SCENEX_FETCH_TIMEOUT sets Fetch.Timeout.
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, key); err != nil {
				return err
			}
			continue
		}
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
