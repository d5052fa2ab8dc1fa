package policy

import (
	"context"
	"fmt"
	"log/slog"
)

// Subject is a user as the in-process engine sees it.
type Subject struct {
	UserID     string
	Role       Role
	Active     bool
	Attributes Attributes
}

// SubjectStore is the persistence the local engine decides against.
type SubjectStore interface {
	GetSubject(ctx context.Context, userID string) (*Subject, error)
	UpdateRole(ctx context.Context, userID string, role Role) error
	UpdateAttributes(ctx context.Context, userID string, attrs Attributes) error
}

// LocalEngine evaluates the built-in role table against stored user attributes.
// It is used for development and as the decision point when no remote one is configured.
type LocalEngine struct {
	store  SubjectStore
	logger *slog.Logger
}

func NewLocalEngine(store SubjectStore, logger *slog.Logger) *LocalEngine {
	return &LocalEngine{store: store, logger: logger}
}

func (e *LocalEngine) Check(ctx context.Context, userID string, action Action, resource ResourceType) (bool, error) {
	subject, err := e.store.GetSubject(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := e.allow(subject, action, resource)
	e.logger.Debug("local policy decision",
		"user_id", userID,
		"role", subject.Role,
		"action", action,
		"resource", resource,
		"allowed", allowed)

	return allowed, nil
}

func (e *LocalEngine) allow(subject *Subject, action Action, resource ResourceType) bool {
	if !subject.Active || subject.Attributes.Blocked {
		return false
	}
	if subject.Role == RoleAdmin {
		return true
	}
	return HasPermission(RolePermissions(subject.Role), resource, action)
}

func (e *LocalEngine) GetUserAttributes(ctx context.Context, userID string) (Attributes, error) {
	subject, err := e.store.GetSubject(ctx, userID)
	if err != nil {
		return Attributes{}, err
	}

	attrs := subject.Attributes
	attrs.Role = subject.Role
	return attrs, nil
}

func (e *LocalEngine) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	subject, err := e.store.GetSubject(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !subject.Active || subject.Attributes.Blocked {
		return []string{}, nil
	}
	return RolePermissions(subject.Role), nil
}

func (e *LocalEngine) AssignRole(ctx context.Context, userID string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	return e.store.UpdateRole(ctx, userID, role)
}

func (e *LocalEngine) SyncUser(ctx context.Context, profile UserProfile) error {
	if err := e.store.UpdateAttributes(ctx, profile.ID, profile.Attributes); err != nil {
		return fmt.Errorf("failed to sync user attributes: %w", err)
	}

	role := profile.Role
	if role == "" {
		role = DefaultRole
	}
	return e.AssignRole(ctx, profile.ID, role)
}
