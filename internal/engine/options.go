package engine

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/shabari/shabari/internal/scanner"
)

// config holds the resolved engine configuration.
type config struct {
	logger        *logrus.Logger
	meterProvider metric.MeterProvider
	scanTimeout   time.Duration
	chunkSize     int
	reporter      scanner.Reporter
}

// Option configures an Engine.
type Option func(*config)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMeterProvider sets the provider metrics are recorded on
// (default: the global otel provider).
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = mp
	}
}

// WithScanTimeout bounds every scan. Zero disables the deadline.
func WithScanTimeout(d time.Duration) Option {
	return func(c *config) {
		c.scanTimeout = d
	}
}

// WithChunkSize sets the streaming read size in bytes.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

// WithReporter installs a reporter notified once per matching scan. The
// reporter runs with the engine lock held and must not call the engine.
func WithReporter(r scanner.Reporter) Option {
	return func(c *config) {
		c.reporter = r
	}
}
