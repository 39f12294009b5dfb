// Package stream relays HLS playlists and segments from an origin media server
// that requires basic auth, so browser players never see the credentials.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/straysafe/straysafebackend/metrics"
)

var ErrInvalidPath = errors.New("stream: invalid path")

const (
	CachePlaylist = "no-cache"
	CacheSegment  = "public, max-age=31536000, immutable"

	KindPlaylist = "playlist"
	KindSegment  = "segment"
	KindOther    = "other"
)

// forwarded request headers
var passHeaders = []string{"User-Agent", "Accept"}

// Relay fetches from Origin with fixed credentials.
type Relay struct {
	Origin   *url.URL
	Username string
	Password string
	Client   *http.Client
}

// NewRelay parses origin and builds a client with the given timeout.
func NewRelay(origin, username, password string, timeout time.Duration) (*Relay, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid stream origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("stream origin %q must be http or https", origin)
	}
	return &Relay{
		Origin:   u,
		Username: username,
		Password: password,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

// Kind classifies a path for cache policy and metrics.
func Kind(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".m3u8":
		return KindPlaylist
	case ".ts":
		return KindSegment
	}
	return KindOther
}

// CachePolicy is the Cache-Control value for p, or "" for no header.
// Playlists change every segment; published segments never do.
func CachePolicy(p string) string {
	switch Kind(p) {
	case KindPlaylist:
		return CachePlaylist
	case KindSegment:
		return CacheSegment
	}
	return ""
}

// CleanPath rejects traversal and absolute paths.
func CleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "..") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return p, nil
}

func (r *Relay) target(p string) string {
	u := *r.Origin
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + p
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// Fetch issues the upstream GET. The caller must close the body. Non-2xx
// responses are returned as is; only transport failures are errors.
func (r *Relay) Fetch(ctx context.Context, p string, in http.Header) (*http.Response, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.target(clean), nil)
	if err != nil {
		return nil, fmt.Errorf("stream: build request: %w", err)
	}
	if r.Username != "" || r.Password != "" {
		req.SetBasicAuth(r.Username, r.Password)
	}
	for _, h := range passHeaders {
		if v := in.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	start := time.Now()
	resp, err := r.Client.Do(req)
	metrics.StreamRelayUpstreamDuration.WithLabelValues(Kind(clean)).Observe(time.Since(start).Seconds())
	if err != nil {
		// url.Error carries the target URL, which has no userinfo
		return nil, fmt.Errorf("stream: upstream request failed: %w", err)
	}
	return resp, nil
}

// ProbeResult describes one stream availability check.
type ProbeResult struct {
	Reachable  bool
	StatusCode int
	URL        string // relay path the player should use
}

// Probe checks that <streamID>/index.m3u8 answers 2xx.
func (r *Relay) Probe(ctx context.Context, streamID string) (ProbeResult, error) {
	if strings.Contains(streamID, "/") {
		return ProbeResult{}, fmt.Errorf("%w: %q", ErrInvalidPath, streamID)
	}
	p := streamID + "/index.m3u8"
	resp, err := r.Fetch(ctx, p, nil)
	if err != nil {
		return ProbeResult{}, err
	}
	defer resp.Body.Close()

	return ProbeResult{
		Reachable:  resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		URL:        "/stream/" + p,
	}, nil
}
