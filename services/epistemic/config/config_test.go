// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "mkbsc.yaml", `
transform:
  iterations: 3
  stop_on_fixpoint: true
output:
  format: dot
  rank_dir: TB
cache:
  enabled: true
  dir: /tmp/mkbsc-cache
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Transform.Iterations)
	assert.True(t, cfg.Transform.StopOnFixpoint)
	assert.Equal(t, "dot", cfg.Output.Format)
	assert.Equal(t, "TB", cfg.Output.RankDir)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/mkbsc-cache", cfg.Cache.Dir)
	assert.Equal(t, Default().Synthesis, cfg.Synthesis, "untouched sections keep defaults")
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "mkbsc.json", `{"synthesis": {"max_levels": 2, "find_all": true}, "logging": {"level": "debug"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Synthesis.MaxLevels)
	assert.True(t, cfg.Synthesis.FindAll)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "mkbsc.yaml", "transform:\n  iterations: 3\n")
	t.Setenv("MKBSC_ITERATIONS", "7")
	t.Setenv("MKBSC_CHECK_OBS", "false")
	t.Setenv("MKBSC_FORMAT", "tikz")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Transform.Iterations)
	assert.False(t, cfg.Transform.CheckObservations)
	assert.Equal(t, "tikz", cfg.Output.Format)
}

func TestDefault_FixpointChecksObservations(t *testing.T) {
	assert.True(t, Default().Transform.CheckObservations)
}

func TestLoad_MalformedEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"integer", "MKBSC_ITERATIONS", "abc"},
		{"budget", "MKBSC_SEARCH_BUDGET", "not-a-number"},
		{"boolean", "MKBSC_STOP_ON_FIXPOINT", "sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeFile(t, "broken.yaml", "{not: [valid")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tried YAML and JSON")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative iterations", func(c *Config) { c.Transform.Iterations = -1 }},
		{"unknown finish", func(c *Config) { c.Transform.Finish = "mkbsc" }},
		{"unknown format", func(c *Config) { c.Output.Format = "svg" }},
		{"unknown rank dir", func(c *Config) { c.Output.RankDir = "up" }},
		{"unknown trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }},
		{"missing service name", func(c *Config) { c.Telemetry.ServiceName = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"disk cache without dir", func(c *Config) { c.Cache.Enabled = true }},
		{"prometheus without file", func(c *Config) { c.Telemetry.MetricExporter = "prometheus" }},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.TraceExporter = "otlp" }},
		{"bad otlp endpoint", func(c *Config) {
			c.Telemetry.TraceExporter = "otlp"
			c.Telemetry.OTLPEndpoint = "not an endpoint"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	ok := Default()
	ok.Cache = CacheConfig{Enabled: true, InMemory: true}
	ok.Telemetry.TraceExporter = "otlp"
	ok.Telemetry.OTLPEndpoint = "localhost:4317"
	ok.Telemetry.MetricExporter = "prometheus"
	ok.Telemetry.MetricsFile = filepath.Join(t.TempDir(), "mkbsc.prom")
	assert.NoError(t, ok.Validate())
}
