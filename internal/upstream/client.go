package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"oscar-gateway/internal/metrics"
)

const (
	DefaultTimeout = 30 * time.Second
	LongTimeout    = 90 * time.Second

	maxResponseBytes = 32 << 20
)

// Config describes one upstream service. Every handler obtains its client from
// NewClient so that timeout and TLS policy stay the same everywhere.
type Config struct {
	Name      string
	BaseURL   string
	APIKey    string
	VerifyTLS bool
	Timeout   time.Duration
}

// Request is a single outbound call. Body is JSON-encoded when set; RawBody is
// streamed as is with ContentType (multipart uploads).
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	RawBody     io.Reader
	ContentType string
	Header      http.Header
	WithAPIKey  bool
	Timeout     time.Duration
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return ErrEmptyBody
	}
	return json.Unmarshal(r.Body, v)
}

type Client struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS} //nolint:gosec // operator-controlled
	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// HTTPClient exposes the configured transport for libraries that need a raw
// *http.Client (the OAuth2 token exchange).
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Do performs req against the base URL. A response with status >= 400 is
// returned together with an *Error. Transport failures wrap ErrUnreachable,
// deadline expiry wraps ErrTimeout.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, c.name)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req.Path, req.Query), body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.WithAPIKey && c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.ObserveUpstream(c.name, req.Method, "error", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, req.Method, req.Path)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.ObserveUpstream(c.name, req.Method, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, req.Method, req.Path)
		}
		return nil, fmt.Errorf("%w: reading %s %s: %v", ErrUnreachable, req.Method, req.Path, err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode >= http.StatusBadRequest {
		return out, NewError(resp.StatusCode, data)
	}
	return out, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.RawBody != nil {
		return req.RawBody, req.ContentType, nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	switch b := req.Body.(type) {
	case json.RawMessage:
		return bytes.NewReader(b), "application/json", nil
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode upstream body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

// Path joins segments into an upstream path, escaping each one. Use it for
// every identifier taken from a route parameter.
func Path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}
