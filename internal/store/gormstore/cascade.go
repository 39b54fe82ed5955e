package gormstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/store"
)

func stepErr(step store.Step, err error) error {
	return &store.StepError{Step: step, Err: err}
}

// DeleteUserCascade moves target's content to sentinel and deletes target in
// a single transaction.
func (s *Store) DeleteUserCascade(ctx context.Context, target, sentinel models.User, now time.Time) (store.MigrationReport, error) {
	var report store.MigrationReport

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var memoIDs []string
		if err := tx.Model(&models.Memo{}).
			Where("author_id = ?", target.ID).
			Order("created_at ASC").
			Pluck("id", &memoIDs).Error; err != nil {
			return stepErr(store.StepLoadMemos, err)
		}

		res := tx.Model(&models.Comment{}).
			Where("author_id = ?", target.ID).
			UpdateColumn("author_id", sentinel.ID)
		if res.Error != nil {
			return stepErr(store.StepMigrateComments, res.Error)
		}
		migratedComments := res.RowsAffected

		if err := tx.Model(&models.Memo{}).
			Where("author_id = ?", target.ID).
			UpdateColumn("author_id", sentinel.ID).Error; err != nil {
			return stepErr(store.StepMigrateMemos, err)
		}

		if len(memoIDs) > 0 {
			notes := make([]models.Comment, 0, len(memoIDs))
			for _, id := range memoIDs {
				notes = append(notes, models.Comment{
					ID:        uuid.NewString(),
					MemoID:    id,
					AuthorID:  sentinel.ID,
					Body:      store.MigrationNote(target.Username),
					IsAnswer:  false,
					CreatedAt: now,
					UpdatedAt: now,
				})
			}
			if err := tx.Omit("Author").Create(&notes).Error; err != nil {
				return stepErr(store.StepMigrationNotes, err)
			}

			if err := tx.Model(&models.Memo{}).
				Where("id IN ?", memoIDs).
				Where("title NOT LIKE ?", models.MigratedPrefix+"%").
				UpdateColumn("title", gorm.Expr("TRIM(? || title)", models.MigratedPrefix+" ")).Error; err != nil {
				return stepErr(store.StepMarkTitles, err)
			}
		}

		if err := tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error; err != nil {
			return stepErr(store.StepDeleteSessions, err)
		}

		res = tx.Where("id = ?", target.ID).Delete(&models.User{})
		if res.Error != nil {
			return stepErr(store.StepDeleteUser, res.Error)
		}
		if res.RowsAffected == 0 {
			return stepErr(store.StepDeleteUser, store.ErrNotFound)
		}

		report = store.MigrationReport{MemoIDs: memoIDs, MigratedComments: migratedComments}
		return nil
	})
	if err != nil {
		return store.MigrationReport{}, err
	}
	return report, nil
}
