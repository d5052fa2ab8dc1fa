package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/medichat/internal"
	userDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/user"
	"github.com/frahmantamala/medichat/internal/policy"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, userID string) (*userDatamodel.User, error)
}

type Service struct {
	repo   RepositoryAPI
	policy policy.Client
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, policyClient policy.Client, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policyClient,
		logger: logger,
	}
}

// GetProfile loads the user with the attributes and permissions the decision
// point holds for them. Decision point failures degrade to the stored
// attributes and an empty permission list.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, internal.NewPersistenceError("Failed to load user", err)
	}

	profile := &Profile{User: *FromDataModel(u), Permissions: []string{}}

	attrs, err := s.policy.GetUserAttributes(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to fetch user attributes, using stored ones",
			"user_id", userID,
			"error", err)
		attrs = StoredAttributes(u)
	}
	profile.Attributes = attrs

	perms, err := s.policy.GetUserPermissions(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to fetch user permissions",
			"user_id", userID,
			"error", err)
	} else if perms != nil {
		profile.Permissions = perms
	}

	return profile, nil
}
