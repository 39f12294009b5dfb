package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/ai_cam1/index.m3u8":
			w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
			w.Header().Set("X-Seen-UA", r.Header.Get("User-Agent"))
			io.WriteString(w, "#EXTM3U\n")
		case "/ai_cam1/seg1.ts":
			w.Header().Set("Content-Type", "video/mp2t")
			io.WriteString(w, "segment")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCachePolicy(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"ai_cam1/index.m3u8", "no-cache"},
		{"ai_cam1/INDEX.M3U8", "no-cache"},
		{"ai_cam1/seg42.ts", "public, max-age=31536000, immutable"},
		{"ai_cam1/init.mp4", ""},
		{"ai_cam1/", ""},
	}
	for _, tt := range tests {
		if got := CachePolicy(tt.path); got != tt.want {
			t.Errorf("CachePolicy(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRelayFetch(t *testing.T) {
	up := newUpstream(t)
	relay, err := NewRelay(up.URL, "user", "secret", 5*time.Second)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}

	in := http.Header{}
	in.Set("User-Agent", "hls.js")
	resp, err := relay.Fetch(context.Background(), "ai_cam1/index.m3u8", in)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != "#EXTM3U\n" {
		t.Errorf("status=%d body=%q", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Seen-UA") != "hls.js" {
		t.Errorf("User-Agent not forwarded")
	}

	missing, err := relay.Fetch(context.Background(), "ai_cam1/nope.ts", nil)
	if err != nil {
		t.Fatalf("Fetch missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", missing.StatusCode)
	}
}

func TestRelayRejectsTraversal(t *testing.T) {
	relay, err := NewRelay("http://127.0.0.1:1", "", "", time.Second)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	for _, p := range []string{"../etc/passwd", "/abs/index.m3u8", "a/../../b.ts", ""} {
		if _, err := relay.Fetch(context.Background(), p, nil); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Fetch(%q) = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestRelayTransportError(t *testing.T) {
	up := newUpstream(t)
	addr := up.URL
	up.Close()

	relay, err := NewRelay(addr, "user", "secret", time.Second)
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	_, err = relay.Fetch(context.Background(), "ai_cam1/index.m3u8", nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks credentials: %v", err)
	}
}

func TestProbe(t *testing.T) {
	up := newUpstream(t)
	relay, _ := NewRelay(up.URL, "user", "secret", time.Second)

	ok, err := relay.Probe(context.Background(), "ai_cam1")
	if err != nil || !ok.Reachable || ok.URL != "/stream/ai_cam1/index.m3u8" {
		t.Errorf("Probe(ai_cam1) = %+v, %v", ok, err)
	}
	down, err := relay.Probe(context.Background(), "cam9")
	if err != nil || down.Reachable || down.StatusCode != 404 {
		t.Errorf("Probe(cam9) = %+v, %v", down, err)
	}
}

func TestLoadCatalog(t *testing.T) {
	def, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadCatalog(missing): %v", err)
	}
	if got := def.Entries(); len(got) != 1 || got[0].ID != "ai_cam1" || got[0].Name != "AI Camera 1" {
		t.Errorf("default catalog = %+v", got)
	}

	path := filepath.Join(t.TempDir(), "streams.yaml")
	yml := "streams:\n  - id: cam10\n    name: Market\n  - id: cam2\n    name: Plaza\n    status: offline\n  - id: cam1\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	got := c.Entries()
	wantIDs := []string{"cam1", "cam2", "cam10"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d entries, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[0].URL != "/stream/cam1/index.m3u8" || got[0].Status != "active" || got[1].Status != "offline" {
		t.Errorf("defaults not applied: %+v", got)
	}
}
