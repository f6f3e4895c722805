// Package api implements the HTTP client of the Delta trading platform REST contract.
//
// Every call carries the session token as a bearer credential when there is
// one. Calls to authenticated endpoints are not sent at all without a token:
// they fail with ErrNoToken.
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

	"go.uber.org/zap"
)

// DefaultBaseURL is the address of a locally running platform.
const DefaultBaseURL = "http://localhost:8081/api"

// ErrNoToken is returned by authenticated calls when the session holds no token.
var ErrNoToken = errors.New("not logged in: no session token")

// TokenSource provides the current session token.
type TokenSource interface {
	// Token returns the bearer token and true, or false if there is none.
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// Token implements TokenSource.
func (f TokenFunc) Token() (string, bool) { return f() }

// noToken is the default TokenSource.
var noToken = TokenFunc(func() (string, bool) { return "", false })

// Client calls the platform endpoints.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http client used for all calls. Timeouts are the
// responsibility of this client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the timeout of the default http client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithTokens sets the source of the bearer token.
func WithTokens(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// New returns a client for the platform at baseURL, e.g. "http://localhost:8081/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid platform url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid platform url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		tokens: noToken,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the platform base url.
func (c *Client) BaseURL() string { return c.base.String() }

// call describes a single request.
type call struct {
	method string
	path   string // relative to the base url, not escaped.
	query  url.Values
	auth   bool // the endpoint requires a token.
	body   any  // json encoded if not nil.
	header http.Header
}

// do executes the call and returns the response body.
// Non 2xx responses are returned as *Error. Transport failures are returned
// wrapped, callers treat both the same way.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	token, hasToken := c.tokens.Token()
	if cl.auth && !hasToken {
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, ErrNoToken)
	}

	u := *c.base
	u.Path = c.base.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode %s %s request: %w", cl.method, cl.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("cannot create http request %q: %w", u.String(), err)
	}
	for k, v := range cl.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hasToken {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot execute http request %s %s: %w", cl.method, cl.path, err)
	}
	defer resp.Body.Close()

	// reading in a buffer to be able to extract error messages
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("cannot read http body of %s %s: %w", cl.method, cl.path, err)
	}
	c.logger.Debug("http call",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Method:  cl.method,
			Path:    cl.path,
			Status:  resp.StatusCode,
			Message: extractMessage(buf.Bytes()),
		}
	}
	return buf.Bytes(), nil
}

// getJSON performs the call and decodes the json response in data.
func (c *Client) getJSON(ctx context.Context, cl call, data any) error {
	body, err := c.do(ctx, cl)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, data); err != nil {
		return fmt.Errorf("cannot decode %s %s response: %w", cl.method, cl.path, err)
	}
	return nil
}

// text performs the call and returns the response message, if any.
// The platform acknowledges mutations with a plain text sentence.
func (c *Client) text(ctx context.Context, cl call) (string, error) {
	body, err := c.do(ctx, cl)
	if err != nil {
		return "", err
	}
	return extractMessage(body), nil
}
