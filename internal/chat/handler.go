package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/medichat/internal"
	"github.com/frahmantamala/medichat/internal/conversation"
	"github.com/frahmantamala/medichat/internal/core/common/validation"
	"github.com/frahmantamala/medichat/internal/transport"
	"github.com/frahmantamala/medichat/pkg/logger"
	"github.com/google/uuid"
)

const maxRequestBytes = 4 << 20

type ServiceAPI interface {
	Chat(ctx context.Context, caller internal.Caller, req Request) (*ResponseStream, error)
	History(ctx context.Context, userID string, limit int) ([]conversation.Summary, error)
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

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	caller, ok := internal.CallerFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrAuthenticationRequired)
		return
	}

	var dto ChatRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&dto); err != nil {
		h.Logger.Warn("Chat: invalid request body", "error", err, "user_id", caller.ID)
		h.WriteAppError(w, internal.ErrInvalidRequestBody)
		return
	}
	if err := validation.Struct(dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	stream, err := h.Service.Chat(r.Context(), caller, Request{
		Messages:    dto.ToMessages(),
		Attachments: dto.ToAttachments(),
		IPAddress:   clientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(DataStreamHeader, DataStreamVersion)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	out := dataStreamWriter{w: w}
	flush := func() {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			h.Logger.Debug("Chat: flush failed", "error", err)
		}
	}

	if err := out.Start("msg-" + uuid.NewString()); err != nil {
		return
	}
	flush()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.Logger.Info("Chat: stream stopped", "user_id", caller.ID, "error", err)
			return
		}
		if err := out.Text(chunk); err != nil {
			h.Logger.Info("Chat: client went away", "user_id", caller.ID, "error", err)
			return
		}
		flush()
	}

	reason := finishReasonStop
	if stream.Failed() {
		reason = finishReasonError
	}
	if err := out.Finish(reason); err == nil {
		flush()
	}
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.Service.History(r.Context(), userID, limit)
	if err != nil {
		h.Logger.Error("History: failed to get chat history", "error", err, "user_id", userID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, HistoryResponse{History: history})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
