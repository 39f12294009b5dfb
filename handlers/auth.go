package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
	"github.com/straysafe/straysafebackend/validation"
)

var errReferralInvalid = errors.New("referral code is not valid")

type AuthHandler struct {
	DB   *gorm.DB
	Auth *Authenticator
	// Now is overridable in tests
	Now func() time.Time
}

func NewAuthHandler(db *gorm.DB, auth *Authenticator) *AuthHandler {
	return &AuthHandler{DB: db, Auth: auth, Now: time.Now}
}

type LoginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterPayload struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8"`
	ReferralCode string `json:"referral_code" validate:"required"`
}

// SessionResponse is returned by login and register. The token is also set
// as a cookie for the web client.
type SessionResponse struct {
	Message     string       `json:"message,omitempty"`
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []string     `json:"permissions"`
}

// effectivePermissions merges direct and role permissions.
func effectivePermissions(user *models.User) []string {
	seen := map[string]struct{}{}
	for _, p := range user.GlobalPermissions {
		seen[p] = struct{}{}
	}
	for _, role := range user.Roles {
		if role == nil {
			continue
		}
		for _, p := range role.GlobalPermissions {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, message string, user *models.User) {
	token, expiresAt, err := h.Auth.IssueToken(user)
	if err != nil {
		logging.Err(err).Uint("user_id", user.ID).Msg("failed to issue token")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to generate token")
		return
	}
	setSessionCookie(w, r, token, expiresAt)
	writeJSON(w, status, SessionResponse{
		Message:     message,
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        user,
		Roles:       user.RoleNames(),
		Permissions: effectivePermissions(user),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	user, err := h.Auth.UserRepo.GetByEmail(payload.Email)
	if err != nil || !user.CheckPassword(payload.Password) {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logging.Err(err).Msg("login lookup failed")
		}
		WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid email or password")
		return
	}
	if user.Banned {
		WriteAPIError(w, http.StatusForbidden, CodeForbidden, "This account has been banned.")
		return
	}

	logging.Info().Uint("user_id", user.ID).Msg("user logged in")
	h.startSession(w, r, http.StatusOK, "Login successful", user)
}

// Register creates an account with the default role. The referral code is
// checked and consumed in the same transaction as the insert.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeJSON(r, &payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request payload")
		return
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	payload.Name = strings.TrimSpace(payload.Name)
	payload.ReferralCode = strings.ToUpper(strings.TrimSpace(payload.ReferralCode))
	if verr := validation.ValidateStruct(payload); verr != nil {
		writeValidationError(w, verr)
		return
	}

	if _, err := h.Auth.UserRepo.GetByEmail(payload.Email); err == nil {
		writeValidationError(w, validation.NewFieldError("email", "The email has already been taken."))
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Err(err).Msg("register email lookup failed")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to register user")
		return
	}

	user := &models.User{Name: payload.Name, Email: payload.Email, GlobalPermissions: []string{}}
	if err := user.SetPassword(payload.Password); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to hash password")
		return
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		codes := repository.NewGormReferralCodeRepository(tx)
		code, err := codes.GetByCode(payload.ReferralCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errReferralInvalid
			}
			return err
		}
		if !code.IsValid(h.Now()) {
			return errReferralInvalid
		}

		role, err := repository.NewGormRoleRepository(tx).GetByName(models.DefaultUserRoleName)
		if err != nil {
			return fmt.Errorf("could not find the '%s' role: %w", models.DefaultUserRoleName, err)
		}

		user.ReferralCode = &code.Code
		user.Roles = []*models.Role{role}
		if err := repository.NewGormUserRepository(tx).Create(user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		code.RecordUse()
		return codes.Update(code)
	})
	if txErr != nil {
		if errors.Is(txErr, errReferralInvalid) {
			writeValidationError(w, validation.NewFieldError("referral_code", "The referral code is invalid, expired or fully used."))
			return
		}
		logging.Err(txErr).Str("email", payload.Email).Msg("registration failed")
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to register user")
		return
	}

	logging.Info().Uint("user_id", user.ID).Str("referral_code", payload.ReferralCode).Msg("user registered")
	h.startSession(w, r, http.StatusCreated, "Registration successful", user)
}

// Logout clears the session cookie. Bearer tokens are discarded client side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Check reports whether the request carries a valid session without failing.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.authenticate(r)
	if err != nil || user.Banned {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          user,
		"roles":         user.RoleNames(),
		"permissions":   effectivePermissions(user),
	})
}

// CurrentUser retrieves the authenticated user from the request context.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthenticated.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        user,
		"roles":       user.RoleNames(),
		"permissions": effectivePermissions(user),
	})
}
