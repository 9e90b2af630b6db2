package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/shabari/shabari/internal/telemetry"
	"github.com/shabari/shabari/internal/types"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumBy(t *testing.T, agg metricdata.Aggregation, key, value string) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "aggregation is %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordScan(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := telemetry.New(mp)
	ctx := context.Background()

	m.RecordScan(ctx, types.Outcome{Kind: types.OutcomeNoMatch, BytesScanned: 10, Duration: time.Millisecond})
	m.RecordScan(ctx, types.Outcome{
		Kind: types.OutcomeMatched,
		Matches: []types.MatchRecord{
			types.NewMatchRecord("pe_executable", types.TierSignature),
			types.NewMatchRecord("virus", types.TierStandard),
			types.NewMatchRecord("zeus", types.TierHighRisk),
		},
	})
	m.RecordScan(ctx, types.Outcome{Kind: types.OutcomeIOError})

	data := collect(t, reader)
	require.Equal(t, int64(1), sumBy(t, data[telemetry.ScansTotal], "outcome", "no-match"))
	require.Equal(t, int64(1), sumBy(t, data[telemetry.ScansTotal], "outcome", "matched"))
	require.Equal(t, int64(1), sumBy(t, data[telemetry.ScansTotal], "outcome", "io-error"))
	require.Equal(t, int64(1), sumBy(t, data[telemetry.MatchesTotal], "tier", "high-risk"))
	require.Equal(t, int64(1), sumBy(t, data[telemetry.MatchesTotal], "tier", "signature"))
	require.Equal(t, int64(1), sumBy(t, data[telemetry.ScanErrorsTotal], "outcome", "io-error"))

	hist, ok := data[telemetry.ScanDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	require.Equal(t, uint64(3), count)
}

func TestRecordRuleLoad(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := telemetry.New(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m.RecordRuleLoad(context.Background(), nil)
	m.RecordRuleLoad(context.Background(), errors.New("bad"))
	m.RecordRuleLoad(context.Background(), nil)

	data := collect(t, reader)
	require.Equal(t, int64(2), sumBy(t, data[telemetry.RuleLoadsTotal], "result", "ok"))
	require.Equal(t, int64(1), sumBy(t, data[telemetry.RuleLoadsTotal], "result", "error"))
}

func TestNewWithGlobalProvider(t *testing.T) {
	m := telemetry.New(nil)
	require.NotNil(t, m.Scans)
	m.RecordScan(context.Background(), types.Outcome{Kind: types.OutcomeNoMatch})
}
