package actorctx

import (
	"context"

	"github.com/geocoder89/coursehub/internal/domain/principal"
)

type ctxKey string

const (
	keyActor     ctxKey = "coursehub.actor"
	keyRequestID ctxKey = "coursehub.request_id"
)

// Actor is the authenticated principal of the current request.
type Actor struct {
	ID   string
	Kind principal.Kind
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, keyActor, a)
}

func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(keyActor).(Actor)

	return a, ok && a.ID != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}
