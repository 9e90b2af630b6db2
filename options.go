package shabari

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/shabari/shabari/internal/engine"
)

// Option configures an Engine.
type Option = engine.Option

// WithLogger routes engine logs to l. Engines discard logs by default.
func WithLogger(l *logrus.Logger) Option {
	return engine.WithLogger(l)
}

// WithMeterProvider records engine metrics on mp instead of the global
// OpenTelemetry provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return engine.WithMeterProvider(mp)
}

// WithScanTimeout bounds every scan; an expired scan is classified as a
// scan error. Zero (the default) means no deadline.
func WithScanTimeout(d time.Duration) Option {
	return engine.WithScanTimeout(d)
}

// WithChunkSize sets how many bytes are read per streaming step.
func WithChunkSize(n int) Option {
	return engine.WithChunkSize(n)
}

// WithReporter installs a reporter notified once per matching scan. The
// reporter runs with the engine lock held and must not call the engine.
func WithReporter(r Reporter) Option {
	return engine.WithReporter(r)
}
