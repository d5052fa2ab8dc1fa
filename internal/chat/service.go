// Package chat runs a chat turn end to end: classification, authorization,
// audit, persistence and the streamed model reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/audit"
	"github.com/frahmantamala/medichat/internal/conversation"
	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/core/events"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/frahmantamala/medichat/internal/llm"
	"github.com/frahmantamala/medichat/internal/policy"
	"github.com/frahmantamala/medichat/internal/prompt"
)

type ClassifierAPI interface {
	Classify(ctx context.Context, userID string, messages []chatDatamodel.Message) prompt.Result
}

type AuditAPI interface {
	LogAccessAttempt(ctx context.Context, entry audit.Entry) error
}

type HistoryAPI interface {
	History(ctx context.Context, userID string, limit int) ([]conversation.Summary, error)
}

type PublisherAPI interface {
	Publish(ctx context.Context, event events.Event) error
}

// ToolsFunc returns the tools the model may use while answering userID.
type ToolsFunc func(userID string) []llm.Tool

type Request struct {
	Messages    []chatDatamodel.Message
	Attachments []llm.Attachment
	IPAddress   string
	UserAgent   string
}

type Service struct {
	classifier ClassifierAPI
	policy     policy.Client
	generator  llm.Generator
	audit      AuditAPI
	history    HistoryAPI
	publisher  PublisherAPI
	tools      ToolsFunc
	model      string
	stepBudget int
	logger     *slog.Logger
}

func NewService(
	classifier ClassifierAPI,
	policyClient policy.Client,
	generator llm.Generator,
	auditService AuditAPI,
	history HistoryAPI,
	publisher PublisherAPI,
	logger *slog.Logger,
) *Service {
	return &Service{
		classifier: classifier,
		policy:     policyClient,
		generator:  generator,
		audit:      auditService,
		history:    history,
		publisher:  publisher,
		stepBudget: llm.DefaultStepBudget,
		logger:     logger,
	}
}

func (s *Service) WithTools(tools ToolsFunc) *Service {
	s.tools = tools
	return s
}

// WithModel sets the model name recorded in the audit trail.
func (s *Service) WithModel(model string) *Service {
	s.model = model
	return s
}

func (s *Service) WithStepBudget(budget int) *Service {
	if budget > 0 {
		s.stepBudget = budget
	}
	return s
}

// Chat runs one turn and returns the reply stream. Every error returned here
// happens before any output and is an *internal.AppError.
func (s *Service) Chat(ctx context.Context, caller internal.Caller, req Request) (*ResponseStream, error) {
	log := s.logger.With("user_id", caller.ID)

	result := s.classifier.Classify(ctx, caller.ID, req.Messages)
	if !result.Allowed {
		log.Warn("chat prompt rejected",
			"classification", result.Classification,
			"reason", result.Reason)
		s.auditDenial(ctx, caller, req, result.Classification.Action(), policy.ResourcePrompt, map[string]any{
			"reason":         result.Reason,
			"classification": string(result.Classification),
		})
		if result.Classification == prompt.ClassificationError {
			return nil, internal.NewClassificationError(result.Reason)
		}
		return nil, internal.NewAuthorizationError(result.Reason, internal.ErrCodePromptRejected).
			WithDetails(map[string]string{"classification": string(result.Classification)})
	}

	action := result.Classification.Action()
	if err := s.authorize(ctx, caller.ID, action); err != nil {
		reason := err.Error()
		if appErr, ok := internal.IsAppError(err); ok {
			reason = appErr.Message
		}
		s.auditDenial(ctx, caller, req, action, policy.ResourceChat, map[string]any{
			"reason":         reason,
			"classification": string(result.Classification),
		})
		return nil, err
	}

	if err := s.audit.LogAccessAttempt(ctx, audit.Entry{
		UserID:   caller.ID,
		UserRole: caller.Role,
		Action:   "process",
		Resource: string(policy.ResourceAIResponse),
		Allowed:  true,
		Context: map[string]any{
			"messageCount":   len(req.Messages),
			"filters":        result.Filters.Map(),
			"classification": string(result.Classification),
			"model":          s.model,
		},
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}); err != nil {
		log.Warn("audit log failed, continuing", "error", err)
	}

	if err := s.publisher.Publish(ctx, events.NewConversationSubmittedEvent(caller.ID, req.Messages)); err != nil {
		log.Warn("failed to queue conversation save", "error", err)
	}

	genReq := llm.Request{
		SystemPrompt: prompt.BuildSystemPrompt(result.Classification, result.Filters),
		Messages:     req.Messages,
		Attachments:  req.Attachments,
		StepBudget:   s.stepBudget,
	}
	if s.tools != nil {
		genReq.Tools = s.tools(caller.ID)
	}

	stream, err := s.generator.Generate(ctx, genReq)
	if err != nil {
		log.Error("AI processing error",
			"model", s.model,
			"error", err)
		return nil, internal.NewModelError(err)
	}

	log.Debug("chat stream started",
		"classification", result.Classification,
		"messages_count", len(req.Messages))

	return newResponseStream(stream, caller.ID, s.logger), nil
}

// auditDenial records a refused turn. Failures are logged and otherwise ignored.
func (s *Service) auditDenial(
	ctx context.Context,
	caller internal.Caller,
	req Request,
	action policy.Action,
	resource policy.ResourceType,
	details map[string]any,
) {
	details["messageCount"] = len(req.Messages)
	err := s.audit.LogAccessAttempt(ctx, audit.Entry{
		UserID:    caller.ID,
		UserRole:  caller.Role,
		Action:    string(action),
		Resource:  string(resource),
		Allowed:   false,
		Context:   details,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		s.logger.Warn("audit log of denied chat failed", "user_id", caller.ID, "error", err)
	}
}

// authorize checks the chat action against the decision point. A denial is
// overridden for admins. When the decision point fails, read-only chat stays
// available and everything else is refused.
func (s *Service) authorize(ctx context.Context, userID string, action policy.Action) error {
	allowed, err := s.policy.Check(ctx, userID, action, policy.ResourceChat)
	if err != nil {
		s.logger.Error("chat permission check failed",
			"user_id", userID,
			"action", action,
			"error", err)
		if action == policy.ActionView {
			s.logger.Warn("allowing view access despite permission error", "user_id", userID)
			metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceChat), "fallback_allow").Inc()
			return nil
		}
		metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceChat), "error").Inc()
		return s.denied(action)
	}
	if allowed {
		metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceChat), "allow").Inc()
		return nil
	}

	attrs, err := s.policy.GetUserAttributes(ctx, userID)
	if err != nil {
		s.logger.Warn("error checking if user is admin", "user_id", userID, "error", err)
	} else if attrs.Role == policy.RoleAdmin {
		s.logger.Info("admin user granted chat access", "user_id", userID)
		metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceChat), "admin_allow").Inc()
		return nil
	}

	metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceChat), "deny").Inc()
	return s.denied(action)
}

func (s *Service) denied(action policy.Action) error {
	return internal.NewAuthorizationError(
		fmt.Sprintf("Not authorized to %s chat", action),
		internal.ErrCodeAccessDenied,
	)
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]conversation.Summary, error) {
	return s.history.History(ctx, userID, limit)
}
