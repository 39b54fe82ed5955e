// Package store defines the data-access contract shared by the postgres and
// in-memory backends.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EmpoweredVote/memoboard/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 50
)

// MemoFilter drives the memo list. Zero values mean "no filter".
type MemoFilter struct {
	Status   string
	OwnerID  string
	Category string
	Query    string

	// Cursor is the updated_at of the last row already seen. CursorID is
	// that row's id; when set, rows tied on updated_at continue past it
	// instead of being skipped.
	Cursor    *time.Time
	CursorID  string
	Ascending bool
	Limit     int
}

// CountFilter holds the filters the counts query shares with the list.
// Status and owner are the counted dimensions and are not part of it.
type CountFilter struct {
	Category string
	Query    string
}

type MemoCounts struct {
	All    int64 `json:"all"`
	Open   int64 `json:"open"`
	Solved int64 `json:"solved"`
	Owned  int64 `json:"owned"`
}

// MemoUpdate carries optional changes. UpdatedAt is always written.
type MemoUpdate struct {
	Title     *string
	Body      *string
	Category  *string
	Status    *string
	SolvedAt  *time.Time
	UpdatedAt time.Time
}

type CommentUpdate struct {
	Body      *string
	IsAnswer  *bool
	UpdatedAt time.Time
}

// MigrationReport describes what DeleteUserCascade moved to the sentinel.
type MigrationReport struct {
	MemoIDs          []string
	MigratedComments int64
}

// Step names the stage of a cascading delete that failed.
type Step string

const (
	StepLoadMemos       Step = "load_memos"
	StepMigrateComments Step = "migrate_comments"
	StepMigrateMemos    Step = "migrate_memos"
	StepMigrationNotes  Step = "migration_comments"
	StepMarkTitles      Step = "mark_titles"
	StepDeleteSessions  Step = "delete_sessions"
	StepDeleteUser      Step = "delete_user"
)

// StepError wraps the failure of one cascade step. The whole cascade has
// been rolled back when it is returned.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return "cascade " + string(e.Step) + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

type Store interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateDisplayName(ctx context.Context, userID, displayName string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	CreateSession(ctx context.Context, s *models.Session) error
	// SessionWithUser returns the session with its User preloaded.
	SessionWithUser(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	CreateMemo(ctx context.Context, m *models.Memo) error
	MemoByID(ctx context.Context, id string) (*models.Memo, error)
	ListMemos(ctx context.Context, f MemoFilter) ([]models.Memo, error)
	CountMemos(ctx context.Context, f CountFilter, ownerID string) (MemoCounts, error)
	UpdateMemo(ctx context.Context, id string, u MemoUpdate) (*models.Memo, error)
	DeleteMemo(ctx context.Context, id string) error

	CreateComment(ctx context.Context, c *models.Comment) error
	CommentByID(ctx context.Context, id string) (*models.Comment, error)
	CommentsForMemo(ctx context.Context, memoID string) ([]models.Comment, error)
	UpdateComment(ctx context.Context, id string, u CommentUpdate) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// DeleteUserCascade hands every memo and comment of target to sentinel,
	// annotates the migrated memos, then removes target and its sessions.
	// Either all of it happens or none of it does.
	DeleteUserCascade(ctx context.Context, target, sentinel models.User, now time.Time) (MigrationReport, error)

	Ping(ctx context.Context) error
}

// MigrationNote is the body of the comment left on each migrated memo.
func MigrationNote(username string) string {
	return "Migrated from " + username + ". Original author removed."
}

// MigratedTitle prefixes title with the migration marker once.
func MigratedTitle(title string) string {
	if strings.HasPrefix(title, models.MigratedPrefix) {
		return title
	}
	return strings.TrimSpace(models.MigratedPrefix + " " + title)
}

// NormalizeLimit clamps a page size into [1, MaxPageSize].
func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
