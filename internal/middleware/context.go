package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Actor struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	OrgID     uuid.UUID
	Email     string
	FullName  string
	OrgSlug   string
	OrgName   string
	CSRFToken string
	ExpiresAt time.Time
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}
	return v
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	v, ok := ctx.Value(actorKey).(Actor)
	return v, ok
}
