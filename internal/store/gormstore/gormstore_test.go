package gormstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/memoboard/internal/db"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
)

const (
	targetID   = "6f1c1c52-3b7e-4c53-9d7e-6d0c3a1e0001"
	sentinelID = "6f1c1c52-3b7e-4c53-9d7e-6d0c3a1e0002"
	memoID     = "6f1c1c52-3b7e-4c53-9d7e-6d0c3a1e0003"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := db.Open(sqlDB, slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	require.NoError(t, err)
	return New(gdb), mock
}

func TestUserByID_MalformedIDSkipsQuery(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.UserByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByID_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "board"\."users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}))

	_, err := s.UserByID(context.Background(), targetID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByUsername(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "display_name", "role", "created_at"}).
		AddRow(targetID, "alice", "hash", "Alice", "admin", time.Now())
	mock.ExpectQuery(`SELECT \* FROM "board"\."users" WHERE username = \$1`).
		WillReturnRows(rows)

	u, err := s.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, targetID, u.ID)
	require.Equal(t, "admin", u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMemos_CursorAndOrder(t *testing.T) {
	s, mock := newMockStore(t)

	cursor := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "board"\."memos" WHERE .*updated_at < \$\d.*ORDER BY updated_at DESC,id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	memos, err := s.ListMemos(context.Background(), store.MemoFilter{Query: "50%", Cursor: &cursor, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, memos)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMemos_AscendingUsesGreaterThan(t *testing.T) {
	s, mock := newMockStore(t)

	cursor := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "board"\."memos" WHERE updated_at > \$1 ORDER BY updated_at ASC,id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.ListMemos(context.Background(), store.MemoFilter{Cursor: &cursor, Ascending: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMemos_CompositeCursor(t *testing.T) {
	s, mock := newMockStore(t)

	cursor := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "board"\."memos" WHERE \(updated_at < \$1 OR \(updated_at = \$2 AND id < \$3\)\) ORDER BY updated_at DESC,id DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.ListMemos(context.Background(), store.MemoFilter{Cursor: &cursor, CursorID: memoID})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%`, escapeLike("50%"))
	require.Equal(t, `a\_b`, escapeLike("a_b"))
	require.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
}

func TestDeleteUserCascade_Commits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .*id.* FROM "board"\."memos" WHERE author_id = \$1`).
		WithArgs(targetID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(memoID))
	mock.ExpectExec(`UPDATE "board"\."comments" SET "author_id"`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE "board"\."memos" SET "author_id"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "board"\."comments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "board"\."memos" SET "title"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "board"\."sessions" WHERE user_id = \$1`).
		WithArgs(targetID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "board"\."users" WHERE id = \$1`).
		WithArgs(targetID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	target := models.User{ID: targetID, Username: "leaver"}
	sentinel := models.User{ID: sentinelID, Username: models.SentinelUsername}
	report, err := s.DeleteUserCascade(context.Background(), target, sentinel, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{memoID}, report.MemoIDs)
	require.Equal(t, int64(3), report.MigratedComments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserCascade_RollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .*id.* FROM "board"\."memos" WHERE author_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(memoID))
	mock.ExpectExec(`UPDATE "board"\."comments" SET "author_id"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	target := models.User{ID: targetID, Username: "leaver"}
	sentinel := models.User{ID: sentinelID, Username: models.SentinelUsername}
	_, err := s.DeleteUserCascade(context.Background(), target, sentinel, time.Now())

	var stepErr *store.StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, store.StepMigrateComments, stepErr.Step)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMemo_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "board"\."comments" WHERE memo_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "board"\."memos" WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.DeleteMemo(context.Background(), memoID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
