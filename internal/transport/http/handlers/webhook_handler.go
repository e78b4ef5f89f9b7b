package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	httperrors "github.com/ivankudzin/roadreport/internal/transport/http/errors"
)

const maxUpdateBytes = 1 << 20

// UpdateFunc processes one inbound Telegram update. It reports its own
// failures; the webhook always acknowledges accepted updates.
type UpdateFunc func(ctx context.Context, update tgbotapi.Update)

type WebhookHandler struct {
	secret string
	handle UpdateFunc
	logger *zap.Logger
}

func NewWebhookHandler(secret string, handle UpdateFunc, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		secret: strings.TrimSpace(secret),
		handle: handle,
		logger: logger,
	}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if !h.secretMatches(chi.URLParam(r, "secret")) {
		httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
			Code:    "FORBIDDEN",
			Message: "invalid webhook secret",
		})
		return
	}
	if h.handle == nil {
		writeInternal(w, "BOT_UNAVAILABLE", "bot is not initialized")
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		h.logger.Debug("decode webhook update", zap.Error(err))
		writeBadRequest(w, "VALIDATION_ERROR", "invalid update payload")
		return
	}

	// the update is processed to the end even if Telegram hangs up; a
	// half-applied report would otherwise be replayed by the retry
	h.handle(context.WithoutCancel(r.Context()), update)
	httperrors.Write(w, http.StatusOK, httperrors.OK{OK: true})
}

func (h *WebhookHandler) secretMatches(got string) bool {
	if h.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
