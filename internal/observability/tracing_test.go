package observability

import (
	"context"
	"testing"
)

func TestSetupDefaultAgentHost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shutdown, err := Setup(ctx, Config{
		Environment: "test",
		ServiceName: "test-service",
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown function")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestSetupAgentUnavailable(t *testing.T) {
	t.Parallel()

	// Exporter creation succeeds even when nothing listens; spans fail to
	// export silently. Setup must not return an error either way.
	ctx := context.Background()
	shutdown, err := Setup(ctx, Config{
		AgentHost:   "localhost:1",
		Environment: "test",
		ServiceName: "graceful-test",
	})
	if err != nil {
		t.Fatalf("Setup should degrade gracefully, got %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown function")
	}
	_ = shutdown(ctx)
}
