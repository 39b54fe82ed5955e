package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/models"
)

var (
	admin  = &models.UserPublic{ID: "admin-1", Role: models.RoleAdmin}
	author = &models.UserPublic{ID: "user-1", Role: models.RoleUser}
	other  = &models.UserPublic{ID: "user-2", Role: models.RoleUser}
)

func TestAllow(t *testing.T) {
	owned := Owned(author.ID)

	tests := []struct {
		name   string
		actor  *models.UserPublic
		action Action
		want   error
	}{
		{"anyone reads", other, MemoRead, nil},
		{"anyone comments", other, CommentCreate, nil},
		{"author updates memo", author, MemoUpdate, nil},
		{"admin updates memo", admin, MemoUpdate, nil},
		{"stranger cannot update memo", other, MemoUpdate, apperr.ErrForbidden},
		{"admin deletes memo", admin, MemoDelete, nil},
		{"stranger cannot delete memo", other, MemoDelete, apperr.ErrForbidden},
		{"admin edits comment", admin, CommentEdit, nil},
		{"author cannot mark answer", author, CommentSetAnswer, apperr.ErrForbidden},
		{"admin marks answer", admin, CommentSetAnswer, nil},
		{"author deletes comment", author, CommentDelete, nil},
		{"admin cannot delete comment", admin, CommentDelete, apperr.ErrForbidden},
		{"user cannot list users", author, AdminListUsers, apperr.ErrForbidden},
		{"admin deletes user", admin, AdminDeleteUser, nil},
		{"no actor", nil, MemoRead, apperr.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Allow(tt.actor, tt.action, owned)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAllow_DenialMessages(t *testing.T) {
	err := Allow(admin, CommentDelete, Owned(author.ID))
	require.Equal(t, "Only author can delete comment", apperr.Message(err))

	err = Allow(author, CommentSetAnswer, Owned(author.ID))
	require.Equal(t, "Only admin can set answer", apperr.Message(err))

	err = Allow(other, MemoDelete, Owned(author.ID))
	require.Equal(t, "Only admin or author can delete memo", apperr.Message(err))

	err = Allow(other, MemoUpdate, Owned(author.ID))
	require.Equal(t, "Forbidden", apperr.Message(err))
}

func TestAllow_EmptyOwnerIsNobody(t *testing.T) {
	require.Error(t, Allow(author, CommentDelete, Resource{}))
}
