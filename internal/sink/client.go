// Package sink delivers messages to the external chat surface over its
// web API: post, update, and long-content upload.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
)

var (
	// ErrUnauthorized indicates the sink token is invalid or revoked.
	ErrUnauthorized = errors.New("sink: unauthorized (token invalid or revoked)")
	// ErrRateLimited indicates the sink API rate limit was hit.
	ErrRateLimited = errors.New("sink: rate limited")
	// ErrNotFound indicates an update targeted a since-deleted message.
	// This is the only failure class that permits a compensating post.
	ErrNotFound = errors.New("sink: message not found")
)

// MessageRef identifies a delivered message for later updates.
type MessageRef struct {
	Channel   string
	Timestamp string
}

// Client talks to the chat sink's web API.
type Client struct {
	baseURL string
	token   string
	channel string
	http    *http.Client
}

// NewClient creates a sink client. Returns nil if token or channel is empty.
func NewClient(baseURL, token, channel string) *Client {
	token = strings.TrimSpace(token)
	if token == "" || channel == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		channel: channel,
		http:    &http.Client{},
	}
}

// apiResponse is the common sink envelope.
type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// Post sends a new message and returns its ref.
func (c *Client) Post(ctx context.Context, text string) (MessageRef, error) {
	resp, err := c.call(ctx, "chat.postMessage", map[string]string{
		"channel": c.channel,
		"text":    text,
	})
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

// Update rewrites a previously posted message in place. Returns ErrNotFound
// when the message has since been deleted.
func (c *Client) Update(ctx context.Context, ref MessageRef, text string) (MessageRef, error) {
	resp, err := c.call(ctx, "chat.update", map[string]string{
		"channel": ref.Channel,
		"ts":      ref.Timestamp,
		"text":    text,
	})
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

// Upload attaches full content as a file with a short preview message,
// used instead of truncation for long user inputs.
func (c *Client) Upload(ctx context.Context, content, previewPrefix string) (MessageRef, error) {
	resp, err := c.call(ctx, "files.upload", map[string]string{
		"channels":        c.channel,
		"content":         content,
		"initial_comment": previewPrefix,
		"filetype":        "text",
	})
	if err != nil {
		return MessageRef{}, err
	}
	return MessageRef{Channel: c.channel, Timestamp: resp.TS}, nil
}

// call performs an authenticated form POST and decodes the envelope.
func (c *Client) call(ctx context.Context, method string, params map[string]string) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("sink: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sink: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sink: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("sink: reading response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("sink: parsing response: %w", err)
	}
	if !parsed.OK {
		switch parsed.Error {
		case "message_not_found", "cant_update_message":
			return nil, ErrNotFound
		case "ratelimited", "rate_limited":
			return nil, ErrRateLimited
		case "invalid_auth", "token_revoked", "not_authed":
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("sink: %s failed: %s", method, parsed.Error)
	}
	return &parsed, nil
}
