// Package httpapi implements the finance ports against the REST API.
package httpapi

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

	"praondefoi/internal/cache"
	"praondefoi/internal/core"
	"praondefoi/internal/log"
	"praondefoi/internal/normalize"
)

const (
	apiPrefix       = "/api/financas"
	maxResponseSize = 64 << 20
)

// Timeouts bounds each class of request. A caller whose context already
// carries a deadline keeps it.
type Timeouts struct {
	Summary  time.Duration
	Insights time.Duration
	List     time.Duration
	Write    time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Summary:  5 * time.Second,
		Insights: 8 * time.Second,
		List:     10 * time.Second,
		Write:    10 * time.Second,
	}
}

// TokenSource supplies the bearer token. Token storage lives elsewhere.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token; empty means unauthenticated.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

type Config struct {
	BaseURL    string
	Tokens     TokenSource
	Timeouts   Timeouts
	HTTPClient *http.Client
	Logger     *log.Logger
	// CategoryCache resolves names for transactions that only carry an id.
	// Optional.
	CategoryCache *cache.LRUCache[CategoryKey, string]
	// CategoryMissTTL is how long an id absent from the directory is
	// remembered. Defaults to DefaultCategoryMissTTL.
	CategoryMissTTL time.Duration
}

const DefaultCategoryMissTTL = 30 * time.Second

// CategoryKey scopes a category id to the account whose directory named it.
type CategoryKey struct {
	AccountID  int64
	CategoryID int64
}

type Client struct {
	baseURL    string
	tokens     TokenSource
	timeouts   Timeouts
	httpClient *http.Client
	logger     *log.Logger
	categories *cache.LRUCache[CategoryKey, string]
	missTTL    time.Duration
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("missing API base URL")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	c := &Client{
		baseURL:    base,
		tokens:     cfg.Tokens,
		timeouts:   cfg.Timeouts,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		categories: cfg.CategoryCache,
		missTTL:    cfg.CategoryMissTTL,
	}
	if c.missTTL <= 0 {
		c.missTTL = DefaultCategoryMissTTL
	}
	if c.tokens == nil {
		c.tokens = StaticToken("")
	}
	if c.timeouts == (Timeouts{}) {
		c.timeouts = DefaultTimeouts()
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClientWithPooling()
	}
	if c.logger == nil {
		c.logger = log.Nop()
	}
	c.logger = c.logger.WithComponent(log.ComponentAPI)
	return c, nil
}

// newHTTPClientWithPooling builds a client tuned for many small requests to
// one host. Per-request deadlines come from contexts, not from the client.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}

// request describes one API call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        any    // JSON encoded when non-nil
	raw         []byte // sent as is when non-nil, with contentType
	contentType string
	timeout     time.Duration
}

// do executes req and returns the decoded payload. Transport failures,
// timeouts and non-2xx responses all become *core.RequestError. A body that
// is not JSON is logged and treated as empty.
func (c *Client) do(ctx context.Context, req request) (any, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	fail := func(status int, msg string, err error) error {
		return &core.RequestError{Op: req.op, Status: status, Message: msg, Err: err}
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.raw != nil:
		body = bytes.NewReader(req.raw)
	case req.body != nil:
		buf, err := json.Marshal(req.body)
		if err != nil {
			return nil, fail(0, "", fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fail(0, "", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fail(0, "", fmt.Errorf("token: %w", err))
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.logger.WarnContext(ctx, "API request failed", log.NewFields().
			WithOperation(req.op).
			WithRequest(req.path, 0, time.Since(start).Milliseconds()).
			WithError(err).
			WithErrorType(errorType(err)).ToSlice()...)
		return nil, fail(0, "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fail(resp.StatusCode, "", fmt.Errorf("read body: %w", err))
	}

	c.logger.DebugContext(ctx, "API request completed", log.NewFields().
		WithOperation(req.op).
		WithRequest(req.path, resp.StatusCode, time.Since(start).Milliseconds()).ToSlice()...)

	decoded, decodeErr := normalize.Decode(payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(resp.StatusCode, serverMessage(decoded), nil)
	}
	if decodeErr != nil {
		c.logger.DebugContext(ctx, "Response body is not JSON, treating as empty",
			log.FieldOperation, req.op,
			log.FieldErrorType, log.ErrorTypeMalformed,
			log.FieldError, decodeErr)
		return nil, nil
	}
	return decoded, nil
}

var serverMessageKeys = []string{"message", "mensagem", "Message", "Mensagem", "title", "erro", "error"}

// serverMessage extracts a short message from an error payload.
func serverMessage(raw any) string {
	obj, ok := normalize.Object(raw)
	if !ok {
		return ""
	}
	for _, k := range serverMessageKeys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func errorType(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return log.ErrorTypeTimeout
	}
	return log.ErrorTypeNetwork
}
