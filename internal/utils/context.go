package utils

import (
	"context"

	"github.com/EmpoweredVote/memoboard/internal/models"
)

type contextKey string

const ContextUserKey contextKey = "user"

// WithUser stores the resolved identity on ctx.
func WithUser(ctx context.Context, u *models.UserPublic) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

func GetUserFromContext(ctx context.Context) (*models.UserPublic, bool) {
	u, ok := ctx.Value(ContextUserKey).(*models.UserPublic)
	return u, ok && u != nil
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := GetUserFromContext(ctx)
	if !ok {
		return "", false
	}
	return u.ID, true
}
