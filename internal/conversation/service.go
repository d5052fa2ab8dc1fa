package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/medichat/internal"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/core/events"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/frahmantamala/medichat/internal/policy"
)

type RepositoryAPI interface {
	// SaveRecent overwrites the user's latest session when it was updated
	// after cutoff, otherwise inserts a new one. It reports whether a row was created.
	SaveRecent(ctx context.Context, userID string, messages []chatDatamodel.Message, now, cutoff time.Time) (*chatDatamodel.Session, bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*chatDatamodel.Session, error)
}

type Service struct {
	repo   RepositoryAPI
	policy policy.Client
	logger *slog.Logger
	window time.Duration
	now    func() time.Time
}

func NewService(repo RepositoryAPI, policyClient policy.Client, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policyClient,
		logger: logger,
		window: DefaultWindow,
		now:    time.Now,
	}
}

// WithWindow sets how long a session stays open for reuse.
func (s *Service) WithWindow(window time.Duration) *Service {
	if window > 0 {
		s.window = window
	}
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Save merges messages into the user's active session. An empty list is
// ignored and yields an empty id.
func (s *Service) Save(ctx context.Context, userID string, messages []chatDatamodel.Message) (string, error) {
	if len(messages) == 0 {
		s.logger.Debug("skipping save of empty conversation", "user_id", userID)
		return "", nil
	}

	now := s.now().UTC()
	session, created, err := s.repo.SaveRecent(ctx, userID, messages, now, now.Add(-s.window))
	if err != nil {
		s.logger.Error("failed to save conversation",
			"user_id", userID,
			"messages_count", len(messages),
			"error", err)
		return "", internal.NewPersistenceError("Failed to save conversation", err)
	}

	if created {
		s.logger.Debug("created chat session", "user_id", userID, "session_id", session.ID)
	} else {
		s.logger.Debug("updated chat session", "user_id", userID, "session_id", session.ID)
	}
	return session.ID, nil
}

// History returns the user's sessions, most recently updated first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Summary, error) {
	limit = NormalizeLimit(limit)

	if !s.authorizeHistoryAccess(ctx, userID) {
		return []Summary{}, nil
	}

	sessions, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		s.logger.Error("failed to get chat history",
			"user_id", userID,
			"limit", limit,
			"error", err)
		return nil, internal.NewPersistenceError("Failed to load chat history", err)
	}

	out := make([]Summary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, FromDataModel(session))
	}
	return out, nil
}

// authorizeHistoryAccess lets a user read their own history unless the
// decision point explicitly denies it. An unreachable decision point does
// not lock users out of their own records.
func (s *Service) authorizeHistoryAccess(ctx context.Context, userID string) bool {
	allowed, err := s.policy.Check(ctx, userID, policy.ActionView, policy.ResourceChat)
	if err != nil {
		s.logger.Error("history permission check failed, falling back to own records",
			"user_id", userID,
			"error", err)
		return true
	}
	if !allowed {
		s.logger.Warn("user not authorized to view chat history", "user_id", userID)
	}
	return allowed
}

// HandleConversationSubmitted returns the event handler that stores submitted
// conversations. Each save is tried once within timeout.
func (s *Service) HandleConversationSubmitted(timeout time.Duration) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.ConversationSubmittedEvent)
		if !ok {
			return errors.New("unexpected event payload for conversation save")
		}

		saveCtx, cancel := internal.Detached(ctx, timeout)
		defer cancel()

		if _, err := s.Save(saveCtx, e.UserID, e.Messages); err != nil {
			metrics.ConversationSaves.WithLabelValues("error").Inc()
			return err
		}
		metrics.ConversationSaves.WithLabelValues("ok").Inc()
		return nil
	}
}
