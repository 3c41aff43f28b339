package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing service name", Config{ServiceVersion: "1.0.0", SampleRate: 1.0}, ErrMissingServiceName},
		{"missing service version", Config{ServiceName: "lantern-api", SampleRate: 1.0}, ErrMissingServiceVersion},
		{"negative sample rate", Config{ServiceName: "lantern-api", ServiceVersion: "1.0.0", SampleRate: -0.1}, ErrInvalidSampleRate},
		{"sample rate above one", Config{ServiceName: "lantern-api", ServiceVersion: "1.0.0", SampleRate: 1.1}, ErrInvalidSampleRate},
		{"zero sample rate", Config{ServiceName: "lantern-api", ServiceVersion: "1.0.0", SampleRate: 0.0}, nil},
		{"full sample rate", Config{ServiceName: "lantern-api", ServiceVersion: "1.0.0", SampleRate: 1.0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInitialize(t *testing.T) {
	t.Run("returns error when config is invalid", func(t *testing.T) {
		tel, err := Initialize(context.Background(), Config{ServiceVersion: "1.0.0"})

		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if tel != nil {
			t.Error("expected nil telemetry, got non-nil")
		}
	})

	t.Run("initializes providers with injected exporters", func(t *testing.T) {
		cfg := Config{
			ServiceName:    "lantern-api",
			ServiceVersion: "1.0.0",
			Environment:    "test",
			EnableTracing:  true,
			EnableMetrics:  true,
			SampleRate:     0.5,
		}

		tel, err := Initialize(context.Background(), cfg,
			WithTraceExporter(NewNoopTraceExporter()),
			WithMetricExporter(NewNoopMetricExporter()),
		)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tel.TracerProvider() == nil {
			t.Error("expected tracer provider, got nil")
		}
		if tel.MeterProvider() == nil {
			t.Error("expected meter provider, got nil")
		}
		if tel.Meter("checkout") == nil {
			t.Error("expected meter, got nil")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
	})

	t.Run("falls back to global meter when metrics are disabled", func(t *testing.T) {
		cfg := Config{
			ServiceName:    "lantern-api",
			ServiceVersion: "1.0.0",
			SampleRate:     1.0,
		}

		tel, err := Initialize(context.Background(), cfg)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tel.MeterProvider() != nil {
			t.Error("expected nil meter provider")
		}
		if tel.Meter("checkout") == nil {
			t.Error("expected global meter, got nil")
		}
		if err := tel.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown failed: %v", err)
		}
	})
}
