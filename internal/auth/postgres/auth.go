package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/medichat/internal/auth"
	userDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.find(ctx, "email = ?", email)
}

func (r *Repository) GetAccountByID(ctx context.Context, userID string) (*auth.Account, error) {
	return r.find(ctx, "id = ?", userID)
}

func (r *Repository) find(ctx context.Context, query string, arg any) (*auth.Account, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "role", "password_hash", "is_active").
		Where(query, arg).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return &auth.Account{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	}, nil
}
