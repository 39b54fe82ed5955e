// Package memstore is a process-local store.Store used for DB_DRIVER=memory
// and by handler tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
)

var errInjected = errors.New("injected failure")

type Store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	sessions map[string]models.Session
	memos    map[string]models.Memo
	comments map[string]models.Comment

	failStep store.Step
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		memos:    make(map[string]models.Memo),
		comments: make(map[string]models.Comment),
	}
}

// FailCascadeAt makes the next DeleteUserCascade fail once it reaches step.
func (s *Store) FailCascadeAt(step store.Step) {
	s.mu.Lock()
	s.failStep = step
	s.mu.Unlock()
}

func (s *Store) Ping(context.Context) error { return nil }

// ---- users ----

func (s *Store) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return store.ErrConflict
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UpdateDisplayName(_ context.Context, userID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.DisplayName = displayName
	s.users[userID] = u
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	s.users[userID] = u
	return nil
}

// ---- sessions ----

func (s *Store) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sess.UserID]; !ok {
		return store.ErrNotFound
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	stored := *sess
	stored.User = nil
	s.sessions[sess.ID] = stored
	return nil
}

func (s *Store) SessionWithUser(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u, ok := s.users[sess.UserID]; ok {
		sess.User = &u
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteUserSessions(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSessionsWhere(func(sess models.Session) bool { return sess.UserID == userID }), nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSessionsWhere(func(sess models.Session) bool { return !sess.ExpiresAt.After(now) }), nil
}

func (s *Store) deleteSessionsWhere(match func(models.Session) bool) int64 {
	var n int64
	for id, sess := range s.sessions {
		if match(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// ---- memos ----

func (s *Store) CreateMemo(_ context.Context, m *models.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[m.AuthorID]; !ok {
		return store.ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.StatusOpen
	}
	stored := *m
	stored.Author = nil
	stored.Comments = nil
	s.memos[m.ID] = stored
	return nil
}

func (s *Store) MemoByID(_ context.Context, id string) (*models.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m = s.withMemoAuthor(m)
	return &m, nil
}

func (s *Store) ListMemos(_ context.Context, f store.MemoFilter) ([]models.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(f.Query)
	out := make([]models.Memo, 0)
	for _, m := range s.memos {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.OwnerID != "" && m.AuthorID != f.OwnerID {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if q != "" && !matchesQuery(m, q) {
			continue
		}
		if f.Cursor != nil && !pastCursor(m, f) {
			continue
		}
		out = append(out, s.withMemoAuthor(m))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if f.Ascending {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if f.Ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if limit := store.NormalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesQuery(m models.Memo, lowered string) bool {
	return strings.Contains(strings.ToLower(m.Title), lowered) ||
		strings.Contains(strings.ToLower(m.Body), lowered)
}

func (s *Store) CountMemos(_ context.Context, f store.CountFilter, ownerID string) (store.MemoCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(f.Query)
	var c store.MemoCounts
	for _, m := range s.memos {
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if q != "" && !matchesQuery(m, q) {
			continue
		}
		c.All++
		switch m.Status {
		case models.StatusOpen:
			c.Open++
		case models.StatusSolved:
			c.Solved++
		}
		if m.AuthorID == ownerID {
			c.Owned++
		}
	}
	return c, nil
}

func (s *Store) UpdateMemo(_ context.Context, id string, u store.MemoUpdate) (*models.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Body != nil {
		m.Body = *u.Body
	}
	if u.Category != nil {
		m.Category = *u.Category
	}
	if u.Status != nil {
		m.Status = *u.Status
		m.SolvedAt = u.SolvedAt
	}
	m.UpdatedAt = u.UpdatedAt
	s.memos[id] = m
	return &m, nil
}

func (s *Store) DeleteMemo(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memos[id]; !ok {
		return store.ErrNotFound
	}
	for cid, c := range s.comments {
		if c.MemoID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.memos, id)
	return nil
}

// ---- comments ----

func (s *Store) CreateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memos[c.MemoID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.users[c.AuthorID]; !ok {
		return store.ErrNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	stored := *c
	stored.Author = nil
	s.comments[c.ID] = stored
	return nil
}

func (s *Store) CommentByID(_ context.Context, id string) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CommentsForMemo(_ context.Context, memoID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Comment, 0)
	for _, c := range s.comments {
		if c.MemoID != memoID {
			continue
		}
		if u, ok := s.users[c.AuthorID]; ok {
			pub := u.Public()
			c.Author = &pub
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateComment(_ context.Context, id string, u store.CommentUpdate) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Body != nil {
		c.Body = *u.Body
	}
	if u.IsAnswer != nil {
		c.IsAnswer = *u.IsAnswer
	}
	c.UpdatedAt = u.UpdatedAt
	s.comments[id] = c
	return &c, nil
}

func (s *Store) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) withMemoAuthor(m models.Memo) models.Memo {
	if u, ok := s.users[m.AuthorID]; ok {
		pub := u.Public()
		m.Author = &pub
	}
	return m
}

// pastCursor reports whether m sorts after the cursor row in f's direction.
func pastCursor(m models.Memo, f store.MemoFilter) bool {
	if m.UpdatedAt.Equal(*f.Cursor) {
		if f.CursorID == "" {
			return false
		}
		if f.Ascending {
			return m.ID > f.CursorID
		}
		return m.ID < f.CursorID
	}
	if f.Ascending {
		return m.UpdatedAt.After(*f.Cursor)
	}
	return m.UpdatedAt.Before(*f.Cursor)
}
