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

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is where the backend listens in development.
const DefaultBaseURL = "http://127.0.0.1:5001"

const maxResponseBytes = 4 << 20

// Client talks to the internship backend. A Client without a token can
// only log in and sign up; use Authorized for the rest.
type Client struct {
	baseURL *url.URL
	base    *http.Client
	http    *http.Client
	token   string
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient sets the underlying client (tests pass httptest's).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.base = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		base:    http.DefaultClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = c.base
	return c, nil
}

// Authorized returns a copy of c that sends token as a bearer credential.
func (c *Client) Authorized(token string) *Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	out := *c
	out.token = token
	out.http = oauth2.NewClient(ctx, src)
	return &out
}

// HasToken reports whether requests carry a bearer token.
func (c *Client) HasToken() bool { return c.token != "" }

func (c *Client) BaseURL() string { return c.baseURL.String() }

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// payload, when set, is sent as the JSON body
	payload any
	// fallback is shown when the backend gives no message
	fallback string
	// generic ignores the backend's message and always shows fallback
	generic bool
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do encodes r, sends it and decodes a successful JSON response into
// out. Every failure from here on comes back as *Error; endpoint
// methods only return plain errors for local file checks.
func (c *Client) do(ctx context.Context, r request, out any) error {
	if r.payload != nil {
		data, err := json.Marshal(r.payload)
		if err != nil {
			return &Error{Message: r.fallback, Err: fmt.Errorf("encode request: %w", err)}
		}
		r.body = bytes.NewReader(data)
		r.contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), r.body)
	if err != nil {
		return &Error{Message: r.fallback, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	c.logger.Debug("api request", zap.String("method", r.method), zap.String("path", r.path))
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api transport failure", zap.String("path", r.path), zap.Error(err))
		return &Error{Message: r.fallback, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: r.fallback, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := r.fallback
		if !r.generic {
			if server := errorMessage(data); server != "" {
				msg = server
			}
		}
		c.logger.Info("api error response",
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Message: r.fallback, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Error is any failed backend call: transport failure, malformed
// response, or a non-2xx status. Message is what the user sees.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthorized reports whether the backend rejected the credentials.
func (e *Error) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func errorMessage(data []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return strings.TrimSpace(envelope.Error)
}
