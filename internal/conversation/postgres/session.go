package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/medichat/internal/conversation"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) conversation.RepositoryAPI {
	return &SessionRepository{db: db}
}

// SaveRecent runs in one transaction and locks the user's latest session row,
// so two saves racing for the same user cannot both decide to insert.
func (r *SessionRepository) SaveRecent(ctx context.Context, userID string, messages []chatDatamodel.Message, now, cutoff time.Time) (*chatDatamodel.Session, bool, error) {
	var (
		saved   chatDatamodel.Session
		created bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest chatDatamodel.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Order("updated_at DESC").
			First(&latest).Error

		switch {
		case err == nil && latest.UpdatedAt.After(cutoff):
			latest.Messages = messages
			latest.UpdatedAt = now
			if err := tx.Model(&latest).
				Select("messages", "updated_at").
				Updates(&latest).Error; err != nil {
				return err
			}
			saved = latest
			return nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		saved = chatDatamodel.Session{
			ID:        uuid.New().String(),
			UserID:    userID,
			Messages:  messages,
			StartedAt: now,
			UpdatedAt: now,
		}
		created = true
		return tx.Create(&saved).Error
	})
	if err != nil {
		return nil, false, err
	}

	return &saved, created, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*chatDatamodel.Session, error) {
	var sessions []*chatDatamodel.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
