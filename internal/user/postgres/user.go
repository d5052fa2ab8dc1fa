package postgres

import (
	"context"
	"errors"
	"fmt"

	userDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/user"
	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/internal/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository stores users. It also backs the in-process policy engine.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]userDatamodel.User, error) {
	var users []userDatamodel.User
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Upsert inserts u, or updates the row with the same email. It returns the stored id.
func (r *UserRepository) Upsert(ctx context.Context, u *userDatamodel.User) (string, error) {
	var existing userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", u.Email).First(&existing).Error
	switch {
	case err == nil:
		u.ID = existing.ID
		err = r.db.WithContext(ctx).Model(&existing).
			Select("name", "password_hash", "role", "department", "clearance", "specialization", "is_blocked", "is_active").
			Updates(u).Error
		if err != nil {
			return "", fmt.Errorf("failed to update user %s: %w", u.Email, err)
		}
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
			return "", fmt.Errorf("failed to create user %s: %w", u.Email, err)
		}
		return u.ID, nil
	default:
		return "", fmt.Errorf("failed to look up user %s: %w", u.Email, err)
	}
}

func (r *UserRepository) GetSubject(ctx context.Context, userID string) (*policy.Subject, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, policy.ErrUnknownUser
		}
		return nil, err
	}

	return &policy.Subject{
		UserID:     u.ID,
		Role:       policy.Role(u.Role),
		Active:     u.IsActive,
		Attributes: user.StoredAttributes(u),
	}, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role policy.Role) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Update("role", string(role))
	if res.Error != nil {
		return fmt.Errorf("failed to update role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return policy.ErrUnknownUser
	}
	return nil
}

func (r *UserRepository) UpdateAttributes(ctx context.Context, userID string, attrs policy.Attributes) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"department":     attrs.Department,
			"clearance":      attrs.Clearance,
			"specialization": attrs.Specialization,
			"is_blocked":     attrs.Blocked,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update attributes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return policy.ErrUnknownUser
	}
	return nil
}
