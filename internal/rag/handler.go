package rag

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/core/common/validation"
	"github.com/frahmantamala/medichat/internal/transport"
	"github.com/frahmantamala/medichat/pkg/logger"
)

type ServiceAPI interface {
	Search(ctx context.Context, userID, text string, limit int) (*SearchResult, error)
}

type SearchQuery struct {
	Q     string `json:"q" validate:"required,max=1000"`
	Limit int    `json:"limit" validate:"gte=0,lte=50"`
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

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteAppError(w, internal.ErrAuthenticationRequired)
		return
	}

	query := SearchQuery{Q: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.WriteAppError(w, internal.NewValidationError("limit must be a number", internal.ErrCodeInvalidQuery))
			return
		}
		query.Limit = limit
	}
	if err := validation.Struct(query); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Search(r.Context(), userID, query.Q, query.Limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
