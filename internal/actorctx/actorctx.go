// Package actorctx carries the acting principal's id on a context.Context
// so code below the HTTP layer can log it.
package actorctx

import "context"

type ctxKey string

const keyUserID ctxKey = "user_id"

func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, keyUserID, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)

	return v, ok && v != ""
}
