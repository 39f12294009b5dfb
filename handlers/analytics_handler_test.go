package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/straysafe/straysafebackend/database"
	"github.com/straysafe/straysafebackend/models"
)

type failingCounter struct{}

func (failingCounter) CountSince(context.Context, string, time.Time) (int64, error) {
	return 0, errors.New("db gone")
}

func TestAnalyticsSummary(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	for _, age := range []time.Duration{time.Hour, 3 * 24 * time.Hour, 20 * 24 * time.Hour, 60 * 24 * time.Hour} {
		pin := &models.MapPin{AnimalType: "dog", StrayStatus: "stray", CreatedAt: now.Add(-age)}
		if err := env.db.Create(pin).Error; err != nil {
			t.Fatalf("create pin: %v", err)
		}
	}
	reports, err := database.NewReports(env.db)
	if err != nil {
		t.Fatalf("NewReports: %v", err)
	}
	h := NewAnalyticsHandler(reports)
	h.Now = func() time.Time { return now }

	rec := doRequest(t, http.HandlerFunc(h.Summary), http.MethodGet, "/api/analytics/summary", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Counts map[string]map[string]int64 `json:"counts"`
	}
	decodeResponse(t, rec, &body)

	want := map[string]int64{"last_24h": 1, "last_7d": 2, "last_30d": 3}
	for window, n := range want {
		if got := body.Counts["pins"][window]; got != n {
			t.Errorf("pins[%s] = %d, want %d", window, got, n)
		}
	}
	if _, ok := body.Counts["registered_animals"]; !ok {
		t.Error("registered_animals missing from summary")
	}

	failing := NewAnalyticsHandler(failingCounter{})
	if rec := doRequest(t, http.HandlerFunc(failing.Summary), http.MethodGet, "/", nil, ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("failing counter = %d, want 500", rec.Code)
	}
}
