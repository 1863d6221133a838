package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	v1 "pulseboard/pkg/api/v1"
	"pulseboard/pkg/constraints"
	"pulseboard/pkg/logger"

	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("pulseboard: unauthorized")

// StatusError is a non-2xx answer carrying the server's error message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pulseboard: status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to a pulseboard server. Session cookies live in its jar, so a
// renewal handed back by the server is picked up transparently.
type Client struct {
	addr          string
	httpClient    *http.Client
	webhookSecret string

	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets how many times a 429, a 503 or a transport error is retried.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

func WithWebhookSecret(secret string) Option {
	return func(c *Client) { c.webhookSecret = secret }
}

func New(addr string, opts ...Option) (*Client, error) {
	c := &Client{
		addr:       strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*v1.Session, error) {
	var session v1.Session
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, v1.Login{Email: email, Password: password}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*v1.Profile, error) {
	var profile v1.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/config/me", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Widgets runs one batch against a dashboard module. A failed widget is reported
// in its Outcome, never as the returned error.
func (c *Client) Widgets(ctx context.Context, module string, calls ...v1.RpcCall) (v1.WidgetResult, error) {
	result := make(v1.WidgetResult, len(calls))
	if err := c.do(ctx, http.MethodPost, "/v1/"+module+"/widgets", nil, v1.WidgetBatch{Rpcs: calls}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Invalidate(ctx context.Context, table string) (*v1.Invalidation, error) {
	var out v1.Invalidation
	body := map[string]string{"table": table}
	if err := c.do(ctx, http.MethodPost, "/v1/cache/invalidate", c.secretHeader(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PublishEvent(ctx context.Context, ev v1.ChangeEvent) (*v1.EventAck, error) {
	var out v1.EventAck
	if err := c.do(ctx, http.MethodPost, "/v1/cache/events", c.secretHeader(), ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) secretHeader() map[string]string {
	if c.webhookSecret == "" {
		return nil
	}
	return map[string]string{constraints.WebhookSecretHeader: c.webhookSecret}
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		err := c.once(ctx, method, path, headers, payload, out)
		if err == nil || attempt >= c.maxRetries || !retryable(err) {
			return err
		}

		wait := backoff
		if backoff >= 2 {
			wait += time.Duration(rand.Int63n(int64(backoff / 2)))
		}
		logger.Warn("pulseboard request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, headers map[string]string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, reader)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		if msg.Error == "" {
			msg.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: msg.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pulseboard: decode %s: %w", path, err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusServiceUnavailable || se.Code == http.StatusTooManyRequests
	}
	// transport errors
	return true
}
