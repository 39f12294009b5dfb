package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/straysafe/straysafebackend/push"
	"github.com/straysafe/straysafebackend/repository"
)

type recordingSender struct {
	tokens []string
	title  string
	err    error
}

func (s *recordingSender) Send(ctx context.Context, tokens []string, title, body string) error {
	if len(tokens) == 0 {
		return push.ErrNoTokens
	}
	s.tokens = tokens
	s.title = title
	return s.err
}

func TestPushTokensAndSend(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "mobile@example.com")
	auth := env.bearer(t, u)
	sender := &recordingSender{}
	h := NewPushHandler(repository.NewGormPushTokenRepository(env.db), sender)

	r := chi.NewRouter()
	r.Use(env.auth.AuthMiddleware)
	r.Post("/push-tokens", h.SaveToken)
	r.Post("/notifications/send", h.Send)

	send := map[string]string{"title": "Stray alert", "body": "Dog spotted near the school"}
	rec := doRequest(t, r, http.MethodPost, "/notifications/send", send, auth)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("send with no devices = %d, want 422", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/push-tokens", map[string]string{"token": "ExponentPushToken[abc]"}, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("save token = %d (%s)", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, r, http.MethodPost, "/push-tokens", map[string]string{"token": "ExponentPushToken[abc]"}, auth)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate token = %d, want 422", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/notifications/send", send, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("send = %d (%s)", rec.Code, rec.Body.String())
	}
	if len(sender.tokens) != 1 || sender.title != "Stray alert" {
		t.Errorf("sender got tokens=%v title=%q", sender.tokens, sender.title)
	}

	sender.err = errors.New("expo down")
	if rec := doRequest(t, r, http.MethodPost, "/notifications/send", send, auth); rec.Code != http.StatusInternalServerError {
		t.Errorf("send with failing sender = %d, want 500", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/notifications/send", map[string]string{"title": "only a title"}, auth)
	if _, ok := validationErrors(t, rec)["body"]; !ok {
		t.Errorf("missing body error: %s", rec.Body.String())
	}
}
