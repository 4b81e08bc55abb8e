package observability

import (
	"context"
	"testing"

	"github.com/valter-silva-au/contrib-planner/pkg/models"
)

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), models.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupTracing_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	cfg := models.TelemetryConfig{Endpoint: "http://192.0.2.1:4318", ServiceName: "cplan-test"}
	shutdown, err := SetupTracing(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
