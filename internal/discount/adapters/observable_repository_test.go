package adapters_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/lantern/internal/database"
	"github.com/dejobratic/lantern/internal/discount/adapters"
	"github.com/dejobratic/lantern/internal/discount/adapters/memory"
	"github.com/dejobratic/lantern/internal/discount/domain"
	"github.com/dejobratic/lantern/internal/discount/ports"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestObservableRepository(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := database.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	repo := adapters.NewObservableRepository(memory.NewRepository(), metrics)
	ctx := context.Background()
	now := time.Now().UTC()

	code := domain.Code{
		Code:            "NEWYEAR",
		Kind:            domain.KindPercentage,
		Value:           15,
		UsageLimitTotal: 10,
		ValidFrom:       now.Add(-time.Hour),
		ValidUntil:      now.Add(time.Hour),
		IsActive:        true,
	}
	if err := repo.Create(ctx, code); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	found, err := repo.GetByCode(ctx, "NEWYEAR")
	if err != nil || found.Value != 15 {
		t.Fatalf("GetByCode() = %+v, %v", found, err)
	}
	if _, err := repo.GetByCode(ctx, "MISSING"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound to pass through, got %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	var queries, failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "db_query_duration_seconds":
				for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
					queries += int64(dp.Count)
				}
			case "db_query_errors_total":
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					failures += dp.Value
				}
			}
		}
	}

	if queries != 3 {
		t.Errorf("expected 3 recorded queries, got %d", queries)
	}
	if failures != 1 {
		t.Errorf("expected 1 failed query, got %d", failures)
	}
}
