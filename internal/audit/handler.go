package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/transport"
	"github.com/frahmantamala/medichat/pkg/logger"
)

type ServiceAPI interface {
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// ListMine handles GET /audit: the caller's own access attempts, newest first.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteAppError(w, internal.ErrAuthenticationRequired)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.WriteAppError(w, internal.NewValidationError("limit must be a positive number", internal.ErrCodeInvalidQuery))
			return
		}
		limit = n
	}

	records, err := h.Service.Recent(r.Context(), userID, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]any{"logs": records})
}
