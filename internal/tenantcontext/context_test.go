package tenantcontext

import (
	"context"
	"testing"
)

func TestTenantIDRoundTrip(t *testing.T) {
	ctx := WithTenantID(context.Background(), 42)
	got, ok := TenantIDFromContext(ctx)
	if !ok || got != 42 {
		t.Fatalf("expected tenant 42, got %d ok=%v", got, ok)
	}
}

func TestTenantIDZeroIsIgnored(t *testing.T) {
	ctx := WithTenantID(context.Background(), 0)
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("zero tenant id must not be stored")
	}
}

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "user", "17")
	actorType, actorID := ActorFromContext(ctx)
	if actorType != "user" || actorID != "17" {
		t.Fatalf("expected user/17, got %s/%s", actorType, actorID)
	}
}
