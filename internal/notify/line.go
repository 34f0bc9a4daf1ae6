// Package notify delivers push messages via the LINE Messaging API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"postwatch/internal/scrape"
)

const (
	// DefaultEndpoint is the LINE Messaging API push endpoint.
	DefaultEndpoint = "https://api.line.me/v2/bot/message/push"

	pushTimeout  = 30 * time.Second
	maxErrorBody = 1 << 10
)

// ErrNotConfigured is returned by Push when the channel token or recipient
// is missing. Callers treat it as "skip delivery for this run".
var ErrNotConfigured = errors.New("notify: channel token and recipient are required")

// Message is one entry of a LINE push payload.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

// LineClient pushes text messages to a single LINE recipient.
type LineClient struct {
	endpoint string
	token    string
	to       string
	client   *http.Client
	log      zerolog.Logger
}

// NewLine creates a push client. An empty endpoint falls back to
// DefaultEndpoint. Token and recipient may be empty; the client then reports
// itself unconfigured and refuses to send.
func NewLine(endpoint, token, to string, logger zerolog.Logger) *LineClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &LineClient{
		endpoint: endpoint,
		token:    token,
		to:       to,
		client:   &http.Client{Timeout: pushTimeout},
		log:      logger,
	}
}

// Configured reports whether both credential and recipient are present.
func (c *LineClient) Configured() bool {
	return c.token != "" && c.to != ""
}

// Push sends one text message. Any non-200 response is an error; the caller
// decides whether to keep sending the rest of the batch.
func (c *LineClient) Push(ctx context.Context, text string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(pushRequest{
		To:       c.to,
		Messages: []Message{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("push message: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	c.log.Debug().Msg("push delivered")
	return nil
}

// FormatRecord builds the human-readable notification text for one new post.
func FormatRecord(rec scrape.Record) string {
	return fmt.Sprintf("New post!\n\n%s\n\nLink: %s", rec.Content, rec.Link)
}
