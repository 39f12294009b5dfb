package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/models"
	"github.com/straysafe/straysafebackend/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the user object in the request context.
	UserContextKey ContextKey = "user"

	SessionCookieName = "straysafe_session"
	tokenIssuer       = "straysafebackend"
)

// Authenticator issues and verifies HS256 session tokens.
type Authenticator struct {
	UserRepo repository.UserRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewAuthenticator(userRepo repository.UserRepository, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{UserRepo: userRepo, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs a token for the user and returns it with its expiry.
func (a *Authenticator) IssueToken(user *models.User) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (a *Authenticator) parse(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", claims.Subject, err)
	}
	return uint(id), nil
}

// tokenFromRequest prefers the Authorization header and falls back to the session cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", errors.New("Authorization header format must be Bearer {token}")
		}
		return parts[1], nil
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("authentication required")
}

// authenticate resolves the request's user, returning nil when there is no valid session.
func (a *Authenticator) authenticate(r *http.Request) (*models.User, error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	userID, err := a.parse(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := a.UserRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return user, nil
}

// AuthMiddleware rejects requests without a valid token and stores the user,
// with roles preloaded, in the request context.
func (a *Authenticator) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticate(r)
		if err != nil {
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthenticated.")
			return
		}
		if user.Banned {
			WriteAPIError(w, http.StatusForbidden, CodeForbidden, "This account has been banned.")
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission checks a global permission. It must run after AuthMiddleware.
func RequirePermission(requiredPermission string) func(http.Handler) http.Handler {
	return RequireAnyPermission(requiredPermission)
}

// RequireAnyPermission passes when the user holds at least one of the keys.
func RequireAnyPermission(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthenticated.")
				return
			}
			for _, p := range keys {
				if user.HasGlobalPermission(p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteAPIError(w, http.StatusForbidden, CodeForbidden,
				fmt.Sprintf("requires one of the following permissions: %s", strings.Join(keys, ", ")))
		})
	}
}

// StaticTokenMiddleware guards machine endpoints with pre-shared bearer
// tokens. Every listed token is accepted so they can be rotated one at a time.
// An empty list rejects everything.
func StaticTokenMiddleware(tokens []string) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, err := tokenFromRequest(r)
			if err != nil || r.Header.Get("Authorization") == "" || !matchesAny([]byte(presented), accepted) {
				writeJSON(w, http.StatusUnauthorized, pinResponse{Success: false, Message: "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matchesAny(presented []byte, accepted [][]byte) bool {
	ok := 0
	// compare against every token so timing does not reveal which one matched
	for _, t := range accepted {
		ok |= subtle.ConstantTimeCompare(presented, t)
	}
	return ok == 1
}
