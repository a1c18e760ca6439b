package observability

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/smallbiznis/pitchdeck/internal/config"
)

// Config holds the telemetry settings. Explicit OTEL_* and LOG_* variables
// override what the application config carries.
type Config struct {
	ServiceName string
	Environment string `env:"DEPLOYMENT_ENV"`
	Version     string `env:"SERVICE_VERSION"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OtelEnabled          *bool   `env:"OTEL_ENABLED"`
	OtelExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterProtocol string  `env:"OTEL_EXPORTER_OTLP_PROTOCOL"        envDefault:"grpc"`
	OtelTracesProtocol   string  `env:"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"`
	OtelSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO"                envDefault:"0.1"`
}

// LoadConfig layers the OTEL_* environment over the application config.
// A malformed variable falls back to the application default.
func LoadConfig(cfg config.Config) Config {
	out := Config{
		LogLevel:             "info",
		LogFormat:            "json",
		OtelExporterProtocol: "grpc",
		OtelSamplingRatio:    0.1,
	}
	_ = env.Parse(&out)

	out.ServiceName = strings.TrimSpace(cfg.AppName)
	if out.ServiceName == "" {
		out.ServiceName = "pitchdeck"
	}
	if strings.TrimSpace(out.Environment) == "" {
		out.Environment = cfg.Environment
	}
	if strings.TrimSpace(out.Version) == "" {
		out.Version = cfg.AppVersion
	}
	if strings.TrimSpace(out.OtelExporterEndpoint) == "" {
		out.OtelExporterEndpoint = cfg.OTLPEndpoint
	}
	if p := strings.TrimSpace(out.OtelTracesProtocol); p != "" {
		out.OtelExporterProtocol = p
	}

	out.Environment = strings.TrimSpace(out.Environment)
	out.Version = strings.TrimSpace(out.Version)
	out.LogLevel = strings.ToLower(strings.TrimSpace(out.LogLevel))
	out.LogFormat = strings.ToLower(strings.TrimSpace(out.LogFormat))
	out.OtelExporterEndpoint = strings.TrimSpace(out.OtelExporterEndpoint)
	out.OtelExporterProtocol = strings.ToLower(strings.TrimSpace(out.OtelExporterProtocol))
	return out
}

// Enabled reports whether telemetry is exported. Without OTEL_ENABLED it
// follows whether an exporter endpoint is configured.
func (c Config) Enabled() bool {
	if c.OtelEnabled != nil {
		return *c.OtelEnabled
	}
	return c.OtelExporterEndpoint != ""
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
