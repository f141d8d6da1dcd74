package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// Doer issues one request through the pipeline. The bare Client implements
// it, as do the session gate and retry policy that wrap it.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TokenSource supplies the current access token, or "" when unauthenticated.
type TokenSource func() string

// Client issues HTTP requests against the backend and normalizes every
// failure into an *Error.
type Client struct {
	base   *url.URL
	hc     *http.Client
	tokens TokenSource
	log    zerolog.Logger
}

var _ Doer = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client (primarily for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a transport client. tokens supplies the bearer token
// attached to every request except the refresh exchange.
func NewClient(baseURL string, tokens TokenSource, options ...ClientOption) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[NewClient] parse base URL")
	}
	if tokens == nil {
		return nil, errors.New("[NewClient] token source is required")
	}

	c := &Client{
		base:   base,
		hc:     &http.Client{Timeout: DefaultTimeout},
		tokens: tokens,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Do issues the request. Any failure, HTTP-level or transport-level, comes
// back as an *Error carrying exactly one Kind.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	httpReq.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		kind := KindNetwork
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		c.log.Debug().Str("request_id", requestID).Str("method", req.Method).Str("path", req.Path).
			Err(err).Msg("request failed before a response")
		return nil, NewError(kind, 0, "no response received", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewError(KindNetwork, 0, "reading response body", err)
	}

	c.log.Debug().Str("request_id", requestID).Str("method", req.Method).Str("path", req.Path).
		Int("status", httpResp.StatusCode).Dur("elapsed", time.Since(started)).Msg("request")

	if httpResp.StatusCode >= 400 {
		return nil, errorFromBody(httpResp.StatusCode, body)
	}
	return &Response{Status: httpResp.StatusCode, Body: body}, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := c.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, NewError(KindUnknown, 0, "encoding request body", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, NewError(KindUnknown, 0, "building request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.NoAuth {
		if token := c.tokens(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

// errorFromBody classifies a non-2xx response, pulling message/detail/code
// out of the error body when present.
func errorFromBody(status int, body []byte) *Error {
	kind := kindForStatus(status)
	message := strings.ToLower(http.StatusText(status))

	var payload map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err == nil {
			if m, ok := payload["message"].(string); ok && m != "" {
				message = m
			} else if d, ok := payload["detail"].(string); ok && d != "" {
				message = d
			}
		} else {
			payload = nil
		}
	}

	return &Error{Kind: kind, Status: status, Message: message, Payload: payload}
}
