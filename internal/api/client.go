// Package api is the HTTP client for the forum backend. Every record it
// returns has been validated against the model schemas.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/logctx"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/rs/zerolog"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l.With().Str("component", "api").Logger() }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	token       string
	body        any
	rawBody     io.Reader
	contentType string
}

func (c *Client) send(ctx context.Context, r request, out any) error {
	l := logctx.From(ctx, c.log)

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	contentType := r.contentType
	switch {
	case r.rawBody != nil:
		body = r.rawBody
	case r.body != nil:
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		l.Debug().Err(err).Str("op", r.op).Msg("request failed")
		return &apperr.RequestError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	l.Debug().
		Str("op", r.op).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(r.op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.RequestError{Op: r.op, Status: resp.StatusCode, Message: "invalid response: " + err.Error()}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(raw, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	reqErr := &apperr.RequestError{Op: op, Status: resp.StatusCode, Message: msg}
	switch resp.StatusCode {
	case http.StatusNotFound:
		reqErr.Err = apperr.ErrNotFound
	case http.StatusUnauthorized:
		reqErr.Err = apperr.ErrAuthRequired
	case http.StatusForbidden:
		reqErr.Err = apperr.ErrForbidden
	case http.StatusConflict:
		reqErr.Err = apperr.ErrConflict
	}
	return reqErr
}

func invalid(op string, err error) error {
	return &apperr.RequestError{Op: op, Message: "invalid response: " + err.Error()}
}

func getOne[T any](ctx context.Context, c *Client, r request) (*T, error) {
	var out T
	if err := c.send(ctx, r, &out); err != nil {
		return nil, err
	}
	if err := model.Validate(&out); err != nil {
		return nil, invalid(r.op, err)
	}
	return &out, nil
}

func getList[T any](ctx context.Context, c *Client, r request) ([]T, error) {
	var out []T
	if err := c.send(ctx, r, &out); err != nil {
		return nil, err
	}
	if err := model.ValidateAll(out); err != nil {
		return nil, invalid(r.op, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// IsNotFound reports whether err came from a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

func seg(s string) string { return url.PathEscape(s) }

func deadlineNow() time.Time { return time.Now().Add(time.Second) }
