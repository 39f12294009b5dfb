// Package push fans notifications out to Expo device tokens.
package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/metrics"
)

const (
	DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

	// ChunkSize is the most tokens Expo accepts per request.
	ChunkSize = 100

	breakerName = "expo-push"
)

var ErrNoTokens = errors.New("push: no registered tokens")

// Message is the Expo push payload.
type Message struct {
	To    []string `json:"to"`
	Sound string   `json:"sound,omitempty"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
}

// Client posts messages to the Expo push API behind a circuit breaker.
type Client struct {
	url  string
	http *http.Client
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultExpoURL
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Client{url: url, http: &http.Client{Timeout: timeout}, cb: cb}
}

// Send delivers title and body to every token, ChunkSize at a time. It stops
// at the first failed chunk.
func (c *Client) Send(ctx context.Context, tokens []string, title, body string) error {
	if len(tokens) == 0 {
		return ErrNoTokens
	}
	for start := 0; start < len(tokens); start += ChunkSize {
		end := min(start+ChunkSize, len(tokens))
		msg := Message{To: tokens[start:end], Sound: "default", Title: title, Body: body}

		_, err := c.cb.Execute(func() (struct{}, error) {
			return struct{}{}, c.post(ctx, msg)
		})
		if err != nil {
			metrics.PushNotifications.WithLabelValues("error").Inc()
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				logging.Warn().Err(err).Msg("push: circuit open, request rejected")
			}
			return fmt.Errorf("push: chunk %d-%d: %w", start, end, err)
		}
		metrics.PushNotifications.WithLabelValues("ok").Inc()
	}
	return nil
}

func (c *Client) post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("expo returned status %d", resp.StatusCode)
	}
	return nil
}
