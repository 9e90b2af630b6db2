// Package telemetry defines the OpenTelemetry instruments the engine records
// scans and rule loads on.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/shabari/shabari/internal/types"
)

// MeterName is the instrumentation scope of every instrument.
const MeterName = "github.com/shabari/shabari"

// Instrument names.
const (
	ScansTotal      = "shabari_scans_total"
	MatchesTotal    = "shabari_matches_total"
	ScanErrorsTotal = "shabari_scan_errors_total"
	ScanDuration    = "shabari_scan_duration_seconds"
	ScanBytes       = "shabari_scan_bytes"
	RuleLoadsTotal  = "shabari_rule_loads_total"
)

// Metrics holds the engine instruments.
type Metrics struct {
	Scans     metric.Int64Counter
	Matches   metric.Int64Counter
	Errors    metric.Int64Counter
	Duration  metric.Float64Histogram
	Bytes     metric.Int64Histogram
	RuleLoads metric.Int64Counter
}

// New creates the instruments on mp. A nil mp uses the global provider.
func New(mp metric.MeterProvider) Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)

	m := Metrics{
		Scans:     counter(meter, ScansTotal, "Scans completed, by outcome."),
		Matches:   counter(meter, MatchesTotal, "Indicators matched, by tier."),
		Errors:    counter(meter, ScanErrorsTotal, "Scans classified as errors, by outcome."),
		RuleLoads: counter(meter, RuleLoadsTotal, "Rule load attempts, by result."),
	}
	if h, err := meter.Float64Histogram(ScanDuration, metric.WithUnit("s"), metric.WithDescription("Scan wall time.")); err == nil {
		m.Duration = h
	} else {
		m.Duration = noop.Float64Histogram{}
	}
	if h, err := meter.Int64Histogram(ScanBytes, metric.WithUnit("By"), metric.WithDescription("Bytes read per scan.")); err == nil {
		m.Bytes = h
	} else {
		m.Bytes = noop.Int64Histogram{}
	}
	return m
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// RecordScan records one finished scan.
func (m Metrics) RecordScan(ctx context.Context, out types.Outcome) {
	kind := metric.WithAttributes(attribute.String("outcome", out.Kind.String()))
	m.Scans.Add(ctx, 1, kind)
	m.Duration.Record(ctx, out.Duration.Seconds(), kind)
	m.Bytes.Record(ctx, out.BytesScanned)

	switch out.Kind {
	case types.OutcomeNoMatch:
	case types.OutcomeMatched:
		for _, rec := range out.Matches {
			m.Matches.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", rec.Tier.String())))
		}
	default:
		m.Errors.Add(ctx, 1, kind)
	}
}

// RecordRuleLoad records a rule load attempt.
func (m Metrics) RecordRuleLoad(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RuleLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
