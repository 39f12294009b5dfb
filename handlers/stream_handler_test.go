package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/straysafe/straysafebackend/stream"
)

func newStreamRouter(t *testing.T, origin string) http.Handler {
	t.Helper()
	relay, err := stream.NewRelay(origin, "relay", "secret", 2*time.Second)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	h := NewStreamHandler(relay, stream.NewCatalog(nil))
	r := chi.NewRouter()
	r.Options("/stream/*", h.Preflight)
	r.Get("/stream/*", h.Proxy)
	r.Get("/api/streams/test/{streamId}", h.TestStream)
	return r
}

func TestStreamProxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cam1/index.m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("Cache-Control", "max-age=600")
			io.WriteString(w, "#EXTM3U\n")
		case "/cam1/seg7.ts":
			w.Header().Set("Content-Type", "video/mp2t")
			io.WriteString(w, "tsdata")
		default:
			http.NotFound(w, r)
		}
	}))
	defer origin.Close()
	router := newStreamRouter(t, origin.URL)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantCache   string
		wantBody    string
		wantContent string
	}{
		{"playlist", "/stream/cam1/index.m3u8", http.StatusOK, "no-cache", "#EXTM3U\n", "application/vnd.apple.mpegurl"},
		{"segment", "/stream/cam1/seg7.ts", http.StatusOK, "public, max-age=31536000, immutable", "tsdata", "video/mp2t"},
		{"upstream 404 passes through uncached", "/stream/cam1/missing.ts", http.StatusNotFound, "no-store", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Origin", "http://localhost:3000")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCache)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
				t.Errorf("Allow-Origin = %q", got)
			}
			if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("credentials not allowed")
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantContent != "" && rec.Header().Get("Content-Type") != tt.wantContent {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestStreamPreflight(t *testing.T) {
	router := newStreamRouter(t, "http://127.0.0.1:1")
	req := httptest.NewRequest(http.MethodOptions, "/stream/cam1/index.m3u8", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Errorf("Max-Age = %q", rec.Header().Get("Access-Control-Max-Age"))
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestStreamProxyOriginDown(t *testing.T) {
	origin := httptest.NewServer(http.NotFoundHandler())
	url := origin.URL
	origin.Close()
	router := newStreamRouter(t, url)

	rec := doRequest(t, router, http.MethodGet, "/stream/cam1/index.m3u8", nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	decodeResponse(t, rec, &body)
	if body["error"] != "Failed to proxy stream" {
		t.Errorf("body = %v", body)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/streams/test/cam1", nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("probe status = %d, want 500", rec.Code)
	}
}

func TestStreamProxyRejectsTraversal(t *testing.T) {
	router := newStreamRouter(t, "http://127.0.0.1:1")
	rec := doRequest(t, router, http.MethodGet, "/stream/cam1/../../etc/passwd", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
