package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
)

// Resolver turns a session cookie value into the identity behind it.
type Resolver struct {
	store store.Store
	now   utils.Clock
}

func NewResolver(s store.Store, now utils.Clock) *Resolver {
	if now == nil {
		now = utils.Now
	}
	return &Resolver{store: s, now: now}
}

// Resolve returns (nil, nil) when token does not identify anyone. A session
// whose expires_at is at or before now is deleted on sight; failing to delete
// it is only logged.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.UserPublic, error) {
	if token == "" {
		return nil, nil
	}

	sess, err := r.store.SessionWithUser(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !sess.ExpiresAt.After(r.now()) {
		if err := r.store.DeleteSession(ctx, token); err != nil {
			logging.FromContext(ctx).Warn("failed to delete expired session", "err", err)
		}
		return nil, nil
	}

	if sess.User == nil {
		return nil, nil
	}
	u := sess.User.Public()
	return &u, nil
}
