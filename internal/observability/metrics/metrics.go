package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level OTel instruments.
type Metrics struct {
	invitationsCreated   metric.Int64Counter
	invitationsResponded metric.Int64Counter
	mediaUploaded        metric.Int64Counter
	pitchesCreated       metric.Int64Counter
	rateLimitAllowed     metric.Int64Counter
	rateLimitDenied      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Info("otlp metrics exporting",
			zap.String("service", cfg.ServiceName),
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New creates the counters used by the services.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pitchdeck"
	}
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.invitationsCreated, "pitchdeck_invitations_created_total"},
		{&m.invitationsResponded, "pitchdeck_invitations_responded_total"},
		{&m.mediaUploaded, "pitchdeck_media_uploaded_total"},
		{&m.pitchesCreated, "pitchdeck_pitches_created_total"},
		{&m.rateLimitAllowed, "pitchdeck_rate_limit_allowed_total"},
		{&m.rateLimitDenied, "pitchdeck_rate_limit_denied_total"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil || counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func (m *Metrics) RecordInvitationCreated(ctx context.Context, role string) {
	if m != nil {
		m.add(ctx, m.invitationsCreated, attribute.String("role", role))
	}
}

func (m *Metrics) RecordInvitationResponded(ctx context.Context, status string) {
	if m != nil {
		m.add(ctx, m.invitationsResponded, attribute.String("status", status))
	}
}

func (m *Metrics) RecordMediaUploaded(ctx context.Context, contentType string) {
	if m != nil {
		m.add(ctx, m.mediaUploaded, attribute.String("content_type", contentType))
	}
}

func (m *Metrics) RecordPitchCreated(ctx context.Context) {
	if m != nil {
		m.add(ctx, m.pitchesCreated)
	}
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m != nil {
		m.add(ctx, m.rateLimitAllowed, attribute.String("endpoint", strings.TrimSpace(endpoint)))
	}
}

// RecordRateLimitDenied counts refusals; reason is "limit" or "error".
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m != nil {
		m.add(ctx, m.rateLimitDenied,
			attribute.String("endpoint", strings.TrimSpace(endpoint)),
			attribute.String("reason", strings.TrimSpace(reason)))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		if endpoint == "" {
			return otlpmetrichttp.New(ctx)
		}
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint))
	case "grpc", "grpc/protobuf", "":
		if endpoint == "" {
			return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure(), otlpmetricgrpc.WithEndpoint(endpoint))
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// User, organisation and media identifiers never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":     {},
	"status_code":  {},
	"role":         {},
	"status":       {},
	"content_type": {},
	"reason":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
