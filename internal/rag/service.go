package rag

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/audit"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/frahmantamala/medichat/internal/policy"
)

type SearcherAPI interface {
	Search(ctx context.Context, q Query) ([]Document, error)
}

type AuditAPI interface {
	LogAccessAttempt(ctx context.Context, entry audit.Entry) error
}

type SearchResult struct {
	Query     string         `json:"query"`
	Filters   policy.Filters `json:"filters"`
	Documents []Document     `json:"results"`
}

type Service struct {
	searcher SearcherAPI
	policy   policy.Client
	audit    AuditAPI
	logger   *slog.Logger
}

func NewService(searcher SearcherAPI, policyClient policy.Client, logger *slog.Logger) *Service {
	return &Service{
		searcher: searcher,
		policy:   policyClient,
		logger:   logger,
	}
}

// WithAudit records refused searches.
func (s *Service) WithAudit(auditor AuditAPI) *Service {
	s.audit = auditor
	return s
}

// Search runs a document query for userID. The caller needs the search
// permission on RAG queries; results are narrowed by the caller's filters
// and masked by their permissions.
func (s *Service) Search(ctx context.Context, userID, text string, limit int) (*SearchResult, error) {
	filters, err := s.authorize(ctx, userID)
	if err != nil {
		return nil, err
	}

	docs, err := s.searcher.Search(ctx, Query{Text: text, Filters: filters, Limit: limit})
	if err != nil {
		return nil, internal.NewInternalError("Document search failed", err)
	}

	permissions, err := s.policy.GetUserPermissions(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to get permissions, masking everything",
			"user_id", userID,
			"error", err)
		permissions = nil
	}
	for i := range docs {
		docs[i].Content = policy.MaskContent(docs[i].Content, permissions)
	}

	return &SearchResult{
		Query:     text,
		Filters:   filters,
		Documents: docs,
	}, nil
}

func (s *Service) authorize(ctx context.Context, userID string) (policy.Filters, error) {
	allowed, err := s.policy.Check(ctx, userID, policy.ActionSearch, policy.ResourceRAGQuery)
	if err != nil {
		s.logger.Error("search permission check failed", "user_id", userID, "error", err)
		metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceRAGQuery), "error").Inc()
		s.auditDenial(ctx, userID, "permission check failed")
		return policy.Filters{}, internal.ErrAccessDenied
	}
	if !allowed {
		metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceRAGQuery), "deny").Inc()
		s.auditDenial(ctx, userID, "Not authorized to search documents")
		return policy.Filters{}, internal.NewAuthorizationError("Not authorized to search documents", internal.ErrCodeAccessDenied)
	}
	metrics.PolicyDecisions.WithLabelValues(string(policy.ResourceRAGQuery), "allow").Inc()

	attrs, err := s.policy.GetUserAttributes(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to get user attributes for search filters",
			"user_id", userID,
			"error", err)
		attrs = policy.Attributes{}
	}
	return policy.DeriveFilters(attrs), nil
}

func (s *Service) auditDenial(ctx context.Context, userID, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.LogAccessAttempt(ctx, audit.Entry{
		UserID:   userID,
		Action:   string(policy.ActionSearch),
		Resource: string(policy.ResourceRAGQuery),
		Allowed:  false,
		Context:  map[string]any{"reason": reason},
	})
	if err != nil {
		s.logger.Warn("audit log of denied search failed", "user_id", userID, "error", err)
	}
}
