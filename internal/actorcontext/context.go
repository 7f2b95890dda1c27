package actorcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type contextKey string

const (
	orgIDKey  contextKey = "org_id"
	userIDKey contextKey = "user_id"
)

// WithActor attaches the acting organization and user to the context. The HTTP
// layer fills this in; authorization itself lives outside this service.
func WithActor(ctx context.Context, orgID, userID snowflake.ID) context.Context {
	ctx = context.WithValue(ctx, orgIDKey, orgID)
	return context.WithValue(ctx, userIDKey, userID)
}

func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(orgIDKey).(snowflake.ID)
	return id, ok
}

func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(userIDKey).(snowflake.ID)
	return id, ok
}
