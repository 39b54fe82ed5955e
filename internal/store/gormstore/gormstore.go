// Package gormstore is the postgres-backed store.Store.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/memoboard/internal/db"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Init creates the schema and migrates every table.
func (s *Store) Init() error {
	if err := db.EnsureSchema(s.db, models.Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return s.db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Memo{},
		&models.Comment{},
	)
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// validID filters out tokens postgres would reject as uuid input.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrConflict
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrConflict
	}
	return err
}

// ---- users ----

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&users).Error
	return users, translate(err)
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	return s.updateUserColumn(ctx, userID, "display_name", displayName)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.updateUserColumn(ctx, userID, "password_hash", hash)
}

func (s *Store) updateUserColumn(ctx context.Context, userID, column string, value any) error {
	if !validID(userID) {
		return store.ErrNotFound
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).UpdateColumn(column, value)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- sessions ----

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	return translate(s.db.WithContext(ctx).Omit("User").Create(sess).Error)
}

func (s *Store) SessionWithUser(ctx context.Context, id string) (*models.Session, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var sess models.Session
	if err := s.db.WithContext(ctx).Preload("User").Where("id = ?", id).Take(&sess).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	return translate(s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error)
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error)
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	return res.RowsAffected, translate(res.Error)
}

// ---- memos ----

func (s *Store) CreateMemo(ctx context.Context, m *models.Memo) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.StatusOpen
	}
	return translate(s.db.WithContext(ctx).Omit("Author", "Comments").Create(m).Error)
}

func (s *Store) MemoByID(ctx context.Context, id string) (*models.Memo, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var m models.Memo
	if err := s.db.WithContext(ctx).Preload("Author").Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// escapeLike makes q match literally inside a LIKE pattern.
func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}

func searchScope(q string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if q == "" {
			return tx
		}
		pattern := "%" + escapeLike(q) + "%"
		return tx.Where("(LOWER(title) LIKE LOWER(?) OR LOWER(body) LIKE LOWER(?))", pattern, pattern)
	}
}

func categoryScope(category string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if category == "" {
			return tx
		}
		return tx.Where("category = ?", category)
	}
}

func (s *Store) ListMemos(ctx context.Context, f store.MemoFilter) ([]models.Memo, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Memo{}).
		Preload("Author").
		Scopes(categoryScope(f.Category), searchScope(f.Query))

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OwnerID != "" {
		q = q.Where("author_id = ?", f.OwnerID)
	}

	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	if f.Cursor != nil {
		op := "<"
		if f.Ascending {
			op = ">"
		}
		if validID(f.CursorID) {
			q = q.Where("(updated_at "+op+" ? OR (updated_at = ? AND id "+op+" ?))", *f.Cursor, *f.Cursor, f.CursorID)
		} else {
			q = q.Where("updated_at "+op+" ?", *f.Cursor)
		}
	}

	var memos []models.Memo
	err := q.Order("updated_at " + dir).
		Order("id " + dir).
		Limit(store.NormalizeLimit(f.Limit)).
		Find(&memos).Error
	if err != nil {
		return nil, translate(err)
	}
	return memos, nil
}

type countRow struct {
	Total  int64
	Open   int64
	Solved int64
	Owned  int64
}

func (s *Store) CountMemos(ctx context.Context, f store.CountFilter, ownerID string) (store.MemoCounts, error) {
	var row countRow
	err := s.db.WithContext(ctx).
		Model(&models.Memo{}).
		Scopes(categoryScope(f.Category), searchScope(f.Query)).
		Select(
			"COUNT(*) AS total, "+
				"COUNT(*) FILTER (WHERE status = ?) AS open, "+
				"COUNT(*) FILTER (WHERE status = ?) AS solved, "+
				"COUNT(*) FILTER (WHERE author_id = ?) AS owned",
			models.StatusOpen, models.StatusSolved, ownerID,
		).
		Scan(&row).Error
	if err != nil {
		return store.MemoCounts{}, translate(err)
	}
	return store.MemoCounts{All: row.Total, Open: row.Open, Solved: row.Solved, Owned: row.Owned}, nil
}

func (s *Store) UpdateMemo(ctx context.Context, id string, u store.MemoUpdate) (*models.Memo, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	updates := map[string]any{"updated_at": u.UpdatedAt}
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.Body != nil {
		updates["body"] = *u.Body
	}
	if u.Category != nil {
		updates["category"] = *u.Category
	}
	if u.Status != nil {
		updates["status"] = *u.Status
		updates["solved_at"] = u.SolvedAt
	}

	res := s.db.WithContext(ctx).Model(&models.Memo{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	var m models.Memo
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Store) DeleteMemo(ctx context.Context, id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memo_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return translate(err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Memo{})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// ---- comments ----

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return translate(s.db.WithContext(ctx).Omit("Author").Create(c).Error)
}

func (s *Store) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	var c models.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) CommentsForMemo(ctx context.Context, memoID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	if !validID(memoID) {
		return comments, nil
	}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("memo_id = ?", memoID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, translate(err)
}

func (s *Store) UpdateComment(ctx context.Context, id string, u store.CommentUpdate) (*models.Comment, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	updates := map[string]any{"updated_at": u.UpdatedAt}
	if u.Body != nil {
		updates["body"] = *u.Body
	}
	if u.IsAnswer != nil {
		updates["is_answer"] = *u.IsAnswer
	}

	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.CommentByID(ctx, id)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
