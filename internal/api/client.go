// Package api is the HTTP client for the platform backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/verte-zerg/madrasa/internal/logging"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *log.Logger
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client sends JSON requests to the backend with the session's bearer token.
type Client struct {
	rc       *resty.Client
	session  *Session
	validate *validator.Validate
	logger   *log.Logger
}

// New returns a Client for opts.BaseURL using sess for authentication.
func New(opts Options, sess *Session) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if sess == nil {
		sess = NewSession(nil, 0)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetLogger(logger).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	c := &Client{
		rc:       rc,
		session:  sess,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		c.logger.Debug("api response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"elapsed", resp.Time(),
			"request_id", resp.Request.Header.Get("X-Request-ID"),
		)
		return nil
	})
	return c
}

// Session returns the session used by the client.
func (c *Client) Session() *Session {
	return c.session
}

// Get sends a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, true)
}

// Post sends a POST request with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out, true)
}

// Put sends a PUT request with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out, true)
}

// Patch sends a PATCH request with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out, true)
}

// Delete sends a DELETE request and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authenticated bool) error {
	if authenticated {
		if err := c.session.Refresh(ctx, c); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return err
			}
			// The stale token may still be accepted; the request decides.
			c.logger.Warn("token refresh failed", "err", err)
		}
	}

	req := c.rc.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if authenticated {
		if token := c.session.Token(); token != "" {
			req.SetAuthToken(token)
		}
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Message: GenericMessage, Err: err}
	}

	status := resp.StatusCode()
	if status == http.StatusUnauthorized {
		if cerr := c.session.Clear(ctx); cerr != nil {
			c.logger.Error("failed to clear session", "err", cerr)
		}
		msg := serverMessage(resp.Body())
		if msg == "" {
			msg = "Session expired. Please sign in again."
		}
		return &Error{Status: status, Message: msg, Err: ErrUnauthorized}
	}
	if !resp.IsSuccess() {
		msg := serverMessage(resp.Body())
		if msg == "" {
			msg = GenericMessage
		}
		return &Error{Status: status, Message: msg}
	}
	if err := decodeBody(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeBody decodes data into out, unwrapping a {"data": ...} envelope.
func decodeBody(data []byte, out any) error {
	if out == nil {
		return nil
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(data, &env); err == nil {
			if inner, ok := env["data"]; ok {
				inner = bytes.TrimSpace(inner)
				// An explicit null payload means nothing to decode.
				if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
					return nil
				}
				data = inner
			}
		}
	}
	return json.Unmarshal(data, out)
}

// decodeList accepts either a bare JSON array or an object holding the
// array under one of keys.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if inner, ok := obj[key]; ok {
			return decodeList[T](inner)
		}
	}
	return nil, fmt.Errorf("response has none of the keys %v", keys)
}

// decodeOne decodes a single object that may be wrapped under key.
func decodeOne[T any](raw json.RawMessage, key string) (T, error) {
	var out T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if inner, ok := obj[key]; ok && len(inner) > 0 && inner[0] == '{' {
			raw = inner
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
