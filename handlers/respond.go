package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/validation"
)

const maxJSONBody = 8 << 20 // base64 snapshots ride in pin bodies

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Err(err).Msg("error encoding JSON response")
		}
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeValidationError renders a 422 with messages keyed by field.
func writeValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"message": "The given data was invalid.",
		"errors":  verr.FieldMessages(),
	})
}

// pinResponse is the envelope every pin endpoint answers with.
type pinResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Pin     interface{}         `json:"pin,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writePin(w http.ResponseWriter, status int, message string, pin interface{}) {
	writeJSON(w, status, pinResponse{Success: status < 300, Message: message, Pin: pin})
}

func writePinValidation(w http.ResponseWriter, verr *validation.RequestValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, pinResponse{
		Success: false,
		Message: "Validation failed",
		Errors:  verr.FieldMessages(),
	})
}

// uintParam parses a chi route parameter as an id.
func uintParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// currentUser returns the user AuthMiddleware loaded, or nil.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}

// assetURL turns a relative media path into the URL clients fetch it from.
func assetURL(base, prefix, rel string) string {
	if rel == "" {
		return ""
	}
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") {
		return rel
	}
	return base + "/" + strings.Trim(prefix, "/") + "/" + strings.TrimLeft(rel, "/")
}
