package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/push"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

// Sender delivers a notification to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, title, body string) error
}

type PushHandler struct {
	TokenRepo repository.PushTokenRepository
	Sender    Sender
}

func NewPushHandler(tokenRepo repository.PushTokenRepository, sender Sender) *PushHandler {
	return &PushHandler{TokenRepo: tokenRepo, Sender: sender}
}

type PushTokenPayload struct {
	Token string `json:"token" validate:"required,max=255"`
}

type NotificationPayload struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body" validate:"required,max=2000"`
}

// SaveToken registers a device token for the current user.
func (h *PushHandler) SaveToken(w http.ResponseWriter, r *http.Request) {
	var payload PushTokenPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Token = strings.TrimSpace(payload.Token)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	exists, err := h.TokenRepo.Exists(payload.Token)
	if err != nil {
		logging.Err(err).Msg("failed to check push token")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to save push token")
		return
	}
	if exists {
		writeValidationError(w, validation.NewFieldError("token", "The token has already been taken."))
		return
	}

	token := &models.PushToken{Token: payload.Token}
	if user := currentUser(r); user != nil {
		token.UserID = &user.ID
	}
	if err := h.TokenRepo.Create(token); err != nil {
		logging.Err(err).Msg("failed to save push token")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to save push token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Push token saved successfully"})
}

// Send broadcasts a notification to every registered device.
func (h *PushHandler) Send(w http.ResponseWriter, r *http.Request) {
	var payload NotificationPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Body = strings.TrimSpace(payload.Body)
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	tokens, err := h.TokenRepo.ListTokens()
	if err != nil {
		logging.Err(err).Msg("failed to load push tokens")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to send notification"})
		return
	}

	if err := h.Sender.Send(r.Context(), tokens, payload.Title, payload.Body); err != nil {
		if errors.Is(err, push.ErrNoTokens) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "No devices are registered for notifications"})
			return
		}
		logging.Err(err).Int("tokens", len(tokens)).Msg("failed to send notification")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to send notification"})
		return
	}
	logging.Info().Int("tokens", len(tokens)).Str("title", payload.Title).Msg("notification sent")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification sent successfully"})
}
