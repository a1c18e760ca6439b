package observability

import (
	"testing"

	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFallsBackToAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:      "pitchdeck-api",
		AppVersion:   "1.2.0",
		Environment:  "production",
		OTLPEndpoint: "collector:4317",
	})

	assert.Equal(t, "pitchdeck-api", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.True(t, cfg.Enabled())
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("LOG_LEVEL", " DEBUG ")

	cfg := LoadConfig(config.Config{OTLPEndpoint: "collector:4318"})

	assert.Equal(t, "pitchdeck", cfg.ServiceName)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.False(t, cfg.Enabled())
	assert.True(t, cfg.Debug())
}
