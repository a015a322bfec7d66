// Package ballot submits captured frames to the voting server.
package ballot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andresmejia3/votecam/internal/logging"
	"github.com/andresmejia3/votecam/internal/types"
	"go.uber.org/zap"
)

// Endpoints and their text fields.
const (
	VotePath       = "/vote"
	RegisterPath   = "/register"
	CandidateField = "candidate"
	NameField      = "name"

	// RequestIDHeader correlates a submission with server logs.
	RequestIDHeader = "X-Request-ID"
)

// Default timeouts for the shared transport.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// ErrNotJSON is returned when the server answers with something that is not JSON.
var ErrNotJSON = errors.New("response is not valid JSON")

// Client posts captures to a single server.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// NewHTTPClient returns an HTTP client with production timeouts.
// A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// New creates a client for the server at baseURL (e.g. http://localhost:5000).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", baseURL)
	}

	c := &Client{
		base:   u,
		http:   NewHTTPClient(DefaultTimeout),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Vote submits a capture tagged with a candidate label.
func (c *Client) Vote(ctx context.Context, requestID string, capt *types.Capture, candidate string) (*types.Result, error) {
	return c.submit(ctx, requestID, VotePath, capt, CandidateField, candidate)
}

// Register enrolls the face in capt under name.
func (c *Client) Register(ctx context.Context, requestID string, capt *types.Capture, name string) (*types.Result, error) {
	return c.submit(ctx, requestID, RegisterPath, capt, NameField, name)
}

// Endpoint resolves path against the base URL, keeping any base path prefix.
func (c *Client) Endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

func (c *Client) submit(ctx context.Context, requestID, path string, capt *types.Capture, field, value string) (*types.Result, error) {
	body, contentType, err := NewForm(capt, field, value)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	log := c.logger.With(zap.String("request_id", requestID), zap.String("path", path))
	log.Debug("posting capture", zap.Int("bytes", len(capt.Data)), zap.String(field, value))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	res, err := decodeResult(resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}

	log.Debug("server responded",
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	if res.StatusCode >= http.StatusBadRequest {
		var rejected types.ErrorResult
		if json.Unmarshal(raw, &rejected) == nil && rejected.Error != "" {
			log.Info("server rejected capture", zap.String("reason", rejected.Error))
		}
	}
	return res, nil
}

// decodeResult checks the body is a single JSON value and compacts it, keeping
// key order and number spelling as the server sent them.
func decodeResult(status int, raw []byte) (*types.Result, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w (HTTP %d): %q", ErrNotJSON, status, truncate(raw, 64))
	}

	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return nil, fmt.Errorf("%w (HTTP %d): %v", ErrNotJSON, status, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w (HTTP %d): %v", ErrNotJSON, status, err)
	}

	return &types.Result{
		StatusCode: status,
		Body:       v,
		Text:       out.String(),
	}, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
