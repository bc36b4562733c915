package tracing_test

import (
	"context"
	"testing"

	"github.com/shindakun/diuportal/internal/config"
	"github.com/shindakun/diuportal/internal/tracing"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
	}{
		{"no endpoint", config.TracingConfig{Enabled: true}},
		{"disabled", config.TracingConfig{Enabled: false, Endpoint: "http://localhost:4318"}},
		// Non-routable address so nothing is exported
		{"exporter", config.TracingConfig{Enabled: true, Endpoint: "http://192.0.2.1:4318"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := tracing.Setup(context.Background(), "diuportal-test", tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}
