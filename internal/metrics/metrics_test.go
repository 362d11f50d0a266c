package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	recorder, err := NewRecorder(provider.Meter("test"))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	ctx := context.Background()
	recorder.Record(ctx, OperationPriceDetail, OutcomeSuccess)
	recorder.Record(ctx, OperationPriceDetail, OutcomeSuccess)
	recorder.Record(ctx, OperationPriceDetail, OutcomeNotFound)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	counts := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				counts[outcome.AsString()] += dp.Value
			}
		}
	}

	if counts["success"] != 2 {
		t.Fatalf("success count %d, want 2", counts["success"])
	}
	if counts["not_found"] != 1 {
		t.Fatalf("not_found count %d, want 1", counts["not_found"])
	}
}

func TestNopRecorderDoesNotPanic(t *testing.T) {
	recorder := NewNopRecorder()
	recorder.Record(context.Background(), OperationPriceDetail, OutcomeError)
}

func TestProviderServesPrometheusHandler(t *testing.T) {
	provider, err := NewProvider()
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer func() { _ = provider.MeterProvider.Shutdown(context.Background()) }()

	if provider.Handler == nil {
		t.Fatal("provider must expose a metrics handler")
	}
}
