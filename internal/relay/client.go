package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// Client posts room events to a webhook. It satisfies room.Notifier.
type Client struct {
	url     string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
	backoff        time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithBearerToken sends "Authorization: Bearer <token>" when token is set.
func WithBearerToken(token string) Option {
	token = strings.TrimSpace(token)
	return func(c *Client) {
		if token == "" {
			return
		}
		c.headers = func() map[string]string { return map[string]string{"Authorization": "Bearer " + token} }
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:            strings.TrimSpace(url),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
		backoff:        100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Payload is the webhook body.
type Payload struct {
	Type      room.EventType    `json:"type"`
	RoomID    string            `json:"roomId"`
	Status    chess.Status      `json:"status,omitempty"`
	Winner    chess.Color       `json:"winner,omitempty"`
	White     string            `json:"white,omitempty"`
	Black     string            `json:"black,omitempty"`
	Plies     int               `json:"plies,omitempty"`
	FEN       string            `json:"fen,omitempty"`
	Chat      *room.ChatMessage `json:"chat,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewPayload flattens a room event for the webhook.
func NewPayload(ev room.Event, now time.Time) Payload {
	p := Payload{Type: ev.Type, RoomID: ev.RoomID, Chat: ev.Chat, Timestamp: now.UTC()}
	if r := ev.Room; r != nil && r.Game != nil {
		p.Status = r.Game.Status
		p.Winner = r.Game.Winner
		p.Plies = len(r.Game.Moves)
		p.FEN = chess.FEN(r.Game)
		if r.White != nil {
			p.White = r.White.Name
		}
		if r.Black != nil {
			p.Black = r.Black.Name
		}
	}
	return p
}

// Notify posts ev, retrying transport failures and 5xx answers.
func (c *Client) Notify(ctx context.Context, ev room.Event) error {
	if c == nil || c.url == "" {
		return nil
	}
	return c.postJSON(ctx, NewPayload(ev, time.Now()))
}

func (c *Client) postJSON(ctx context.Context, in any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.url)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)

	attempts := max(c.retryMax, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("relay error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return err
			}
		} else {
			err = fmt.Errorf("relay request failed: %w", err)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, c.backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * c.backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
