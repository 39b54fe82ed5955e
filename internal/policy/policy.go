// Package policy decides who may do what. Every handler asks Allow instead of
// comparing roles and author ids itself.
package policy

import (
	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/models"
)

type Action int

const (
	MemoRead Action = iota
	MemoCreate
	MemoUpdate
	MemoSetStatus
	MemoDelete
	CommentCreate
	CommentEdit
	CommentSetAnswer
	CommentDelete
	ProfileUpdate
	PasswordChange
	AdminListUsers
	AdminCreateUser
	AdminResetPassword
	AdminDeleteUser
	AdminAccess
)

var actionNames = map[Action]string{
	MemoRead:           "memo.read",
	MemoCreate:         "memo.create",
	MemoUpdate:         "memo.update",
	MemoSetStatus:      "memo.set_status",
	MemoDelete:         "memo.delete",
	CommentCreate:      "comment.create",
	CommentEdit:        "comment.edit",
	CommentSetAnswer:   "comment.set_answer",
	CommentDelete:      "comment.delete",
	ProfileUpdate:      "profile.update",
	PasswordChange:     "password.change",
	AdminListUsers:     "admin.list_users",
	AdminCreateUser:    "admin.create_user",
	AdminResetPassword: "admin.reset_password",
	AdminDeleteUser:    "admin.delete_user",
	AdminAccess:        "admin.access",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// Resource is what an action touches. OwnerID is the author for memos and
// comments and empty for everything else.
type Resource struct {
	OwnerID string
}

// Owned is shorthand for a resource authored by ownerID.
func Owned(ownerID string) Resource { return Resource{OwnerID: ownerID} }

type rule int

const (
	anyUser rule = iota
	ownerOrAdmin
	ownerOnly
	adminOnly
)

var rules = map[Action]rule{
	MemoRead:           anyUser,
	MemoCreate:         anyUser,
	CommentCreate:      anyUser,
	ProfileUpdate:      anyUser,
	PasswordChange:     anyUser,
	MemoUpdate:         ownerOrAdmin,
	MemoSetStatus:      ownerOrAdmin,
	MemoDelete:         ownerOrAdmin,
	CommentEdit:        ownerOrAdmin,
	CommentSetAnswer:   adminOnly,
	CommentDelete:      ownerOnly, // admins may edit a comment but not delete it
	AdminListUsers:     adminOnly,
	AdminCreateUser:    adminOnly,
	AdminResetPassword: adminOnly,
	AdminDeleteUser:    adminOnly,
	AdminAccess:        adminOnly,
}

var denials = map[Action]string{
	MemoSetStatus:    "Only admin or author can change status",
	MemoDelete:       "Only admin or author can delete memo",
	CommentSetAnswer: "Only admin can set answer",
	CommentDelete:    "Only author can delete comment",
}

// Allow returns nil when actor may perform action on res, an Unauthorized
// error when there is no actor and a Forbidden error otherwise.
func Allow(actor *models.UserPublic, action Action, res Resource) error {
	if actor == nil || actor.ID == "" {
		return apperr.ErrUnauthorized
	}

	r, ok := rules[action]
	if !ok {
		return deny(action)
	}

	isOwner := res.OwnerID != "" && res.OwnerID == actor.ID
	switch r {
	case anyUser:
		return nil
	case ownerOrAdmin:
		if isOwner || actor.IsAdmin() {
			return nil
		}
	case ownerOnly:
		if isOwner {
			return nil
		}
	case adminOnly:
		if actor.IsAdmin() {
			return nil
		}
	}
	return deny(action)
}

func deny(action Action) error {
	if msg, ok := denials[action]; ok {
		return apperr.Forbidden(msg)
	}
	return apperr.ErrForbidden
}
