package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/straysafe/straysafebackend/logging"
)

// ActivityCounter counts rows created since a point in time.
type ActivityCounter interface {
	CountSince(ctx context.Context, table string, since time.Time) (int64, error)
}

// analyticsTables maps response keys to tables. Only these names reach SQL.
var analyticsTables = map[string]string{
	"pins":               "map_pins",
	"registered_animals": "registered_animals",
	"posts":              "posts",
	"users":              "users",
}

var analyticsWindows = []struct {
	name string
	span time.Duration
}{
	{"last_24h", 24 * time.Hour},
	{"last_7d", 7 * 24 * time.Hour},
	{"last_30d", 30 * 24 * time.Hour},
}

type AnalyticsHandler struct {
	Counter ActivityCounter
	Now     func() time.Time
}

func NewAnalyticsHandler(counter ActivityCounter) *AnalyticsHandler {
	return &AnalyticsHandler{Counter: counter, Now: time.Now}
}

// Summary returns creation counts per table for each window, e.g.
// {"pins": {"last_24h": 3, "last_7d": 12, "last_30d": 40}, ...}.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	out := make(map[string]map[string]int64, len(analyticsTables))
	for key, table := range analyticsTables {
		counts := make(map[string]int64, len(analyticsWindows))
		for _, win := range analyticsWindows {
			n, err := h.Counter.CountSince(r.Context(), table, now.Add(-win.span))
			if err != nil {
				logging.Err(err).Str("table", table).Msg("failed to count activity")
				WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to compute analytics")
				return
			}
			counts[win.name] = n
		}
		out[key] = counts
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": now.UTC().Format(time.RFC3339),
		"counts":       out,
	})
}
