// Package prompt classifies chat prompts and builds the permission-aware
// system prompt sent to the model.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	chatDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/chat"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/frahmantamala/medichat/internal/policy"
)

type Classification string

const (
	ClassificationView    Classification = "view"
	ClassificationUpdate  Classification = "update"
	ClassificationCreate  Classification = "create"
	ClassificationDelete  Classification = "delete"
	ClassificationUnknown Classification = "unknown"
	ClassificationError   Classification = "error"
)

const (
	ReasonNoUserMessage       = "No valid user message found"
	ReasonProhibitedContent   = "Prompt contains prohibited content"
	ReasonClassificationError = "Error during prompt classification"
)

func (c Classification) isIntent() bool {
	switch c {
	case ClassificationView, ClassificationUpdate, ClassificationCreate, ClassificationDelete:
		return true
	}
	return false
}

// Action is the policy action an intent stands for. Non-intent values map to view.
func (c Classification) Action() policy.Action {
	switch c {
	case ClassificationUpdate:
		return policy.ActionUpdate
	case ClassificationCreate:
		return policy.ActionCreate
	case ClassificationDelete:
		return policy.ActionDelete
	default:
		return policy.ActionView
	}
}

// Result is the outcome of classifying one chat turn.
type Result struct {
	Allowed        bool           `json:"allowed"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason,omitempty"`
	Filters        policy.Filters `json:"filters"`
	LastPrompt     string         `json:"-"`
}

type Classifier struct {
	policy policy.Client
	rules  *Rules
	logger *slog.Logger
}

func NewClassifier(client policy.Client, rules *Rules, logger *slog.Logger) *Classifier {
	return &Classifier{
		policy: client,
		rules:  rules,
		logger: logger,
	}
}

// Classify decides whether the latest user message may be answered and under
// which mode. It never returns an error: faults become a denied result with
// the error classification.
func (c *Classifier) Classify(ctx context.Context, userID string, messages []chatDatamodel.Message) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("prompt classification panicked",
				"user_id", userID,
				"panic", r,
				"stack", string(debug.Stack()))
			result = errorResult()
		}
		metrics.PromptClassifications.
			WithLabelValues(string(result.Classification), strconv.FormatBool(result.Allowed)).
			Inc()
	}()

	last, ok := chatDatamodel.LastUserMessage(messages)
	if !ok || strings.TrimSpace(last.Content) == "" {
		return Result{
			Allowed:        false,
			Classification: ClassificationUnknown,
			Reason:         ReasonNoUserMessage,
		}
	}

	text := strings.ToLower(last.Content)
	intent := c.rules.Intent(text)

	attrs, err := c.policy.GetUserAttributes(ctx, userID)
	if err != nil {
		c.logger.Warn("failed to fetch user attributes, classifying without them",
			"user_id", userID,
			"error", err)
		attrs = policy.Attributes{}
	}

	if c.rules.Banned(text, attrs.Role) {
		c.logger.Warn("prompt rejected by banned pattern",
			"user_id", userID,
			"role", attrs.Role,
			"classification", intent)
		return Result{
			Allowed:        false,
			Classification: intent,
			Reason:         ReasonProhibitedContent,
			LastPrompt:     last.Content,
		}
	}

	allowed, err := c.policy.Check(ctx, userID, intent.Action(), policy.ResourcePrompt)
	if err != nil {
		c.logger.Error("prompt policy check failed",
			"user_id", userID,
			"action", intent.Action(),
			"error", err)
		return errorResult()
	}
	if !allowed {
		return Result{
			Allowed:        false,
			Classification: intent,
			Reason:         fmt.Sprintf("Not authorized to %s via chat", intent.Action()),
			LastPrompt:     last.Content,
		}
	}

	return Result{
		Allowed:        true,
		Classification: intent,
		Filters:        policy.DeriveFilters(attrs),
		LastPrompt:     last.Content,
	}
}

func errorResult() Result {
	return Result{
		Allowed:        false,
		Classification: ClassificationError,
		Reason:         ReasonClassificationError,
	}
}
