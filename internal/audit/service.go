package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/medichat/internal"
	auditDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/audit"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type RepositoryAPI interface {
	Insert(ctx context.Context, log *auditDatamodel.Log) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditDatamodel.Log, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// LogAccessAttempt writes the entry to the audit trail. Callers decide
// whether a failure matters; the chat path ignores it.
func (s *Service) LogAccessAttempt(ctx context.Context, entry Entry) error {
	s.logger.Info("access attempt",
		"user_id", entry.UserID,
		"action", entry.Action,
		"resource", entry.Resource,
		"allowed", entry.Allowed)

	contextJSON := "{}"
	if len(entry.Context) > 0 {
		data, err := json.Marshal(entry.Context)
		if err != nil {
			metrics.AuditWrites.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to marshal audit context: %w", err)
		}
		contextJSON = string(data)
	}

	log := &auditDatamodel.Log{
		ID:         uuid.New().String(),
		OccurredAt: s.now().UTC(),
		UserID:     entry.UserID,
		UserRole:   entry.UserRole,
		Action:     entry.Action,
		Resource:   entry.Resource,
		Allowed:    entry.Allowed,
		Context:    contextJSON,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}

	if err := s.repo.Insert(ctx, log); err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		s.logger.Error("failed to write audit log",
			"user_id", entry.UserID,
			"action", entry.Action,
			"resource", entry.Resource,
			"error", err)
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	metrics.AuditWrites.WithLabelValues("ok").Inc()
	return nil
}

// Recent lists the user's latest audit records, newest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	logs, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		s.logger.Error("failed to list audit logs", "user_id", userID, "error", err)
		return nil, internal.NewPersistenceError("Failed to read audit log", err)
	}

	out := make([]Record, 0, len(logs))
	for _, l := range logs {
		out = append(out, FromDataModel(l))
	}
	return out, nil
}
