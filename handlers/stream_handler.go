package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/metrics"
	"github.com/straysafe/straysafebackend/stream"
)

const preflightMaxAge = 86400

// StreamHandler relays HLS files and serves the stream catalog. These routes
// set their own CORS headers since players send credentials cross-origin.
type StreamHandler struct {
	Relay   *stream.Relay
	Catalog *stream.Catalog
}

func NewStreamHandler(relay *stream.Relay, catalog *stream.Catalog) *StreamHandler {
	return &StreamHandler{Relay: relay, Catalog: catalog}
}

func setStreamCORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if origin := r.Header.Get("Origin"); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// Preflight answers OPTIONS on the relay routes.
func (h *StreamHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	setStreamCORS(w, r)
	w.Header().Set("Access-Control-Max-Age", strconv.Itoa(preflightMaxAge))
	w.WriteHeader(http.StatusOK)
}

// Proxy handles GET /stream/* and /stream-proxy/*.
func (h *StreamHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	setStreamCORS(w, r)
	p := chi.URLParam(r, "*")
	kind := stream.Kind(p)

	resp, err := h.Relay.Fetch(r.Context(), p, r.Header)
	if err != nil {
		if errors.Is(err, stream.ErrInvalidPath) {
			metrics.StreamRelayRequests.WithLabelValues(kind, "rejected").Inc()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid stream path"})
			return
		}
		metrics.StreamRelayRequests.WithLabelValues(kind, "transport_error").Inc()
		logging.Warn().Err(err).Str("path", p).Msg("stream relay failed")
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to proxy stream"})
		return
	}
	defer resp.Body.Close()

	result := "ok"
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result = "upstream_error"
	}
	metrics.StreamRelayRequests.WithLabelValues(kind, result).Inc()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	if result != "ok" {
		w.Header().Set("Cache-Control", "no-store")
	} else if policy := stream.CachePolicy(p); policy != "" {
		w.Header().Set("Cache-Control", policy)
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// usually the player went away mid-segment
		logging.Debug().Err(err).Str("path", p).Msg("stream copy interrupted")
	}
}

// ListStreams handles GET /api/streams.
func (h *StreamHandler) ListStreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"streams": h.Catalog.Entries()})
}

// TestStream handles GET /api/streams/test/{streamId}.
func (h *StreamHandler) TestStream(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	res, err := h.Relay.Probe(r.Context(), streamID)
	if err != nil {
		if errors.Is(err, stream.ErrInvalidPath) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Invalid stream id"})
			return
		}
		logging.Warn().Err(err).Str("stream_id", streamID).Msg("stream probe failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Failed to reach stream server"})
		return
	}
	if !res.Reachable {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "Stream returned status code " + strconv.Itoa(res.StatusCode),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Stream is accessible",
		"url":     res.URL,
	})
}
