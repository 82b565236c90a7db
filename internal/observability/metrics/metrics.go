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

// Metrics exposes application-level instruments.
type Metrics struct {
	membershipChanges  metric.Int64Counter
	invitationEvents   metric.Int64Counter
	governanceRejected metric.Int64Counter
	accountDeletions   metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "hearth"
	}
	meter := provider.Meter(name)

	membershipChanges, err := meter.Int64Counter("hearth_membership_changes_total")
	if err != nil {
		return nil, err
	}
	invitationEvents, err := meter.Int64Counter("hearth_invitation_events_total")
	if err != nil {
		return nil, err
	}
	governanceRejected, err := meter.Int64Counter("hearth_governance_rejected_total")
	if err != nil {
		return nil, err
	}
	accountDeletions, err := meter.Int64Counter("hearth_account_deletions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		membershipChanges:  membershipChanges,
		invitationEvents:   invitationEvents,
		governanceRejected: governanceRejected,
		accountDeletions:   accountDeletions,
	}, nil
}

// RecordMembershipChange increments membership add/remove counts.
func (m *Metrics) RecordMembershipChange(ctx context.Context, change string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("change", strings.TrimSpace(change)))
	m.membershipChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvitationEvent increments invitation lifecycle transition counts.
func (m *Metrics) RecordInvitationEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event", strings.TrimSpace(event)))
	m.invitationEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGovernanceRejected increments counts of operations blocked by a governance rule.
func (m *Metrics) RecordGovernanceRejected(ctx context.Context, rule string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("rule", strings.TrimSpace(rule)))
	m.governanceRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAccountDeletion increments completed account deletion counts.
func (m *Metrics) RecordAccountDeletion(ctx context.Context) {
	if m == nil {
		return
	}
	m.accountDeletions.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"change":      {},
	"event":       {},
	"rule":        {},
	"endpoint":    {},
	"status_code": {},
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
