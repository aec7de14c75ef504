// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the settings of the mkbsc tool.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MKBSC_"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config contains all settings. It can be loaded from files and the
// environment.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Transform contains settings of the transform command.
	Transform TransformConfig `json:"transform" yaml:"transform"`

	// Synthesis contains settings of the synthesize command.
	Synthesis SynthesisConfig `json:"synthesis" yaml:"synthesis"`

	// Output contains rendering settings.
	Output OutputConfig `json:"output" yaml:"output"`

	// Cache contains settings of the persistent iterate cache.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Telemetry contains tracing and metrics settings.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging contains logger settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// TransformConfig contains settings of the transform command.
type TransformConfig struct {
	Iterations        int    `json:"iterations" yaml:"iterations" validate:"gte=0,lte=64"`
	StopOnFixpoint    bool   `json:"stop_on_fixpoint" yaml:"stop_on_fixpoint"`
	CheckObservations bool   `json:"check_observations" yaml:"check_observations"`
	Finish            string `json:"finish" yaml:"finish" validate:"omitempty,oneof=kbsc project"`
	FinishAgent       int    `json:"finish_agent" yaml:"finish_agent" validate:"gte=0"`
}

// SynthesisConfig contains settings of the synthesize command.
type SynthesisConfig struct {
	// MaxLevels caps the number of MKBSC iterations tried.
	MaxLevels int `json:"max_levels" yaml:"max_levels" validate:"gte=0,lte=64"`

	// SearchBudget caps the partial profiles verified per level; 0 is unlimited.
	SearchBudget int  `json:"search_budget" yaml:"search_budget" validate:"gte=0"`
	FindAll      bool `json:"find_all" yaml:"find_all"`
	Translate    bool `json:"translate" yaml:"translate"`
}

// OutputConfig contains rendering settings.
type OutputConfig struct {
	Format           string `json:"format" yaml:"format" validate:"oneof=text dot tikz"`
	RankDir          string `json:"rank_dir" yaml:"rank_dir" validate:"omitempty,oneof=LR RL TB BT"`
	HideObservations bool   `json:"hide_observations" yaml:"hide_observations"`
}

// CacheConfig contains settings of the persistent iterate cache.
type CacheConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Dir      string `json:"dir" yaml:"dir"`
	InMemory bool   `json:"in_memory" yaml:"in_memory"`
}

// TelemetryConfig contains tracing and metrics settings.
type TelemetryConfig struct {
	ServiceName    string `json:"service_name" yaml:"service_name" validate:"required"`
	TraceExporter  string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint   string `json:"otlp_endpoint" yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	MetricsFile    string `json:"metrics_file" yaml:"metrics_file"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `json:"dir" yaml:"dir"`
	JSON  bool   `json:"json" yaml:"json"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Transform: TransformConfig{
			Iterations:        1,
			StopOnFixpoint:    false,
			CheckObservations: true,
		},
		Synthesis: SynthesisConfig{
			MaxLevels:    5,
			SearchBudget: 100000,
		},
		Output: OutputConfig{
			Format:  "text",
			RankDir: "LR",
		},
		Cache: CacheConfig{
			Enabled: false,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "mkbsc",
			TraceExporter:  "none",
			MetricExporter: "none",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML or JSON config file. Empty or missing means
//     defaults.
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file exists but is invalid, or if validation fails.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// YAML first, then JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(cfg *Config) error {
	var errs []error
	errs = append(errs, envInt("ITERATIONS", &cfg.Transform.Iterations))
	errs = append(errs, envBool("STOP_ON_FIXPOINT", &cfg.Transform.StopOnFixpoint))
	errs = append(errs, envBool("CHECK_OBS", &cfg.Transform.CheckObservations))
	envString("FINISH", &cfg.Transform.Finish)
	errs = append(errs, envInt("FINISH_AGENT", &cfg.Transform.FinishAgent))

	errs = append(errs, envInt("MAX_LEVELS", &cfg.Synthesis.MaxLevels))
	errs = append(errs, envInt("SEARCH_BUDGET", &cfg.Synthesis.SearchBudget))
	errs = append(errs, envBool("FIND_ALL", &cfg.Synthesis.FindAll))
	errs = append(errs, envBool("TRANSLATE", &cfg.Synthesis.Translate))

	envString("FORMAT", &cfg.Output.Format)
	envString("RANK_DIR", &cfg.Output.RankDir)

	errs = append(errs, envBool("CACHE_ENABLED", &cfg.Cache.Enabled))
	envString("CACHE_DIR", &cfg.Cache.Dir)
	errs = append(errs, envBool("CACHE_IN_MEMORY", &cfg.Cache.InMemory))

	envString("SERVICE_NAME", &cfg.Telemetry.ServiceName)
	envString("TRACE_EXPORTER", &cfg.Telemetry.TraceExporter)
	envString("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	envString("METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)
	envString("METRICS_FILE", &cfg.Telemetry.MetricsFile)

	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_DIR", &cfg.Logging.Dir)
	errs = append(errs, envBool("LOG_JSON", &cfg.Logging.JSON))
	return errors.Join(errs...)
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalidConfig, EnvPrefix, name, v)
	}
	*dst = i
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s%s=%q is not a boolean", ErrInvalidConfig, EnvPrefix, name, v)
	}
	*dst = b
	return nil
}

// Validate checks struct tags and the constraints spanning several fields.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig if the configuration is invalid.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Cache.Enabled && !c.Cache.InMemory && c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir is required for an on-disk cache", ErrInvalidConfig)
	}
	if c.Telemetry.MetricExporter == "prometheus" && c.Telemetry.MetricsFile == "" {
		return fmt.Errorf("%w: telemetry.metrics_file is required for the prometheus exporter", ErrInvalidConfig)
	}
	if c.Telemetry.TraceExporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("%w: telemetry.otlp_endpoint is required for the otlp exporter", ErrInvalidConfig)
	}
	return nil
}
