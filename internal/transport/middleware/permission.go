package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/audit"
	"github.com/frahmantamala/medichat/internal/core/metrics"
	"github.com/frahmantamala/medichat/internal/policy"
)

// AccessAuditor records refused requests. A nil auditor skips the record.
type AccessAuditor interface {
	LogAccessAttempt(ctx context.Context, entry audit.Entry) error
}

// PolicyGuard asks the decision point whether the caller may perform the
// action implied by the HTTP method on resource. Decision point failures deny.
func PolicyGuard(client policy.Client, resource policy.ResourceType, auditor AccessAuditor, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := internal.CallerFromContext(r.Context())
			if !ok {
				status, body := internal.ErrAuthenticationRequired.ToHTTPResponse()
				writeJSON(w, status, body)
				return
			}

			action := policy.ActionForMethod(r.Method)
			allowed, err := client.Check(r.Context(), caller.ID, action, resource)
			if err != nil {
				logger.Error("policy guard check failed",
					"user_id", caller.ID,
					"action", action,
					"resource", resource,
					"error", err)
				metrics.PolicyDecisions.WithLabelValues(string(resource), "error").Inc()
			}
			if err != nil || !allowed {
				reason := "denied by policy"
				if err == nil {
					metrics.PolicyDecisions.WithLabelValues(string(resource), "deny").Inc()
				} else {
					reason = "permission check failed"
				}
				logger.Warn("access denied by policy guard",
					"user_id", caller.ID,
					"action", action,
					"resource", resource)
				auditDenial(r, auditor, caller, action, resource, reason, logger)
				status, body := internal.ErrAccessDenied.ToHTTPResponse()
				writeJSON(w, status, body)
				return
			}

			metrics.PolicyDecisions.WithLabelValues(string(resource), "allow").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func auditDenial(
	r *http.Request,
	auditor AccessAuditor,
	caller internal.Caller,
	action policy.Action,
	resource policy.ResourceType,
	reason string,
	logger *slog.Logger,
) {
	if auditor == nil {
		return
	}
	err := auditor.LogAccessAttempt(r.Context(), audit.Entry{
		UserID:   caller.ID,
		UserRole: caller.Role,
		Action:   string(action),
		Resource: string(resource),
		Allowed:  false,
		Context: map[string]any{
			"reason": reason,
			"method": r.Method,
			"path":   r.URL.Path,
		},
		IPAddress: remoteHost(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		logger.Warn("audit log of denied request failed", "user_id", caller.ID, "error", err)
	}
}
