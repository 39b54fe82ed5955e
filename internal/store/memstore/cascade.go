package memstore

import (
	"context"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
)

type snapshot struct {
	users    map[string]models.User
	sessions map[string]models.Session
	memos    map[string]models.Memo
	comments map[string]models.Comment
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		users:    maps.Clone(s.users),
		sessions: maps.Clone(s.sessions),
		memos:    maps.Clone(s.memos),
		comments: maps.Clone(s.comments),
	}
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.sessions = snap.sessions
	s.memos = snap.memos
	s.comments = snap.comments
}

// DeleteUserCascade runs against a snapshot taken under the write lock and
// puts the snapshot back if any step fails.
func (s *Store) DeleteUserCascade(_ context.Context, target, sentinel models.User, now time.Time) (store.MigrationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	report, err := s.cascade(target, sentinel, now)
	if err != nil {
		s.restore(snap)
		return store.MigrationReport{}, err
	}
	return report, nil
}

func (s *Store) cascade(target, sentinel models.User, now time.Time) (store.MigrationReport, error) {
	var report store.MigrationReport

	if err := s.check(store.StepLoadMemos); err != nil {
		return report, err
	}
	owned := make([]models.Memo, 0)
	for _, m := range s.memos {
		if m.AuthorID == target.ID {
			owned = append(owned, m)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })

	if err := s.check(store.StepMigrateComments); err != nil {
		return report, err
	}
	for id, c := range s.comments {
		if c.AuthorID == target.ID {
			c.AuthorID = sentinel.ID
			s.comments[id] = c
			report.MigratedComments++
		}
	}

	if err := s.check(store.StepMigrateMemos); err != nil {
		return report, err
	}
	for _, m := range owned {
		m = s.memos[m.ID]
		m.AuthorID = sentinel.ID
		s.memos[m.ID] = m
		report.MemoIDs = append(report.MemoIDs, m.ID)
	}

	if err := s.check(store.StepMigrationNotes); err != nil {
		return report, err
	}
	for _, id := range report.MemoIDs {
		c := models.Comment{
			ID:        uuid.NewString(),
			MemoID:    id,
			AuthorID:  sentinel.ID,
			Body:      store.MigrationNote(target.Username),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.comments[c.ID] = c
	}

	if err := s.check(store.StepMarkTitles); err != nil {
		return report, err
	}
	for _, id := range report.MemoIDs {
		m := s.memos[id]
		m.Title = store.MigratedTitle(m.Title)
		s.memos[id] = m
	}

	if err := s.check(store.StepDeleteSessions); err != nil {
		return report, err
	}
	s.deleteSessionsWhere(func(sess models.Session) bool { return sess.UserID == target.ID })

	if err := s.check(store.StepDeleteUser); err != nil {
		return report, err
	}
	if _, ok := s.users[target.ID]; !ok {
		return report, &store.StepError{Step: store.StepDeleteUser, Err: store.ErrNotFound}
	}
	delete(s.users, target.ID)

	return report, nil
}

func (s *Store) check(step store.Step) error {
	if s.failStep == step {
		s.failStep = ""
		return &store.StepError{Step: step, Err: errInjected}
	}
	return nil
}
