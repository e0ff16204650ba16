// Package tenantcontext carries tenant and actor identity through
// request contexts. Every core operation is tenant-scoped, so handlers
// stamp the resolved tenant here and services read it back.
package tenantcontext

import "context"

type contextKey string

const (
	tenantIDKey  contextKey = "loyalty_tenant_id"
	actorTypeKey contextKey = "loyalty_actor_type"
	actorIDKey   contextKey = "loyalty_actor_id"
	requestIDKey contextKey = "loyalty_request_id"
)

func WithTenantID(ctx context.Context, tenantID int64) context.Context {
	if ctx == nil || tenantID == 0 {
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

func TenantIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	value, ok := ctx.Value(tenantIDKey).(int64)
	return value, ok && value != 0
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if actorType != "" {
		ctx = context.WithValue(ctx, actorTypeKey, actorType)
	}
	if actorID != "" {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}
