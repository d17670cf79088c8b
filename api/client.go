package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/programme-lv/contest-client/httpjson"
	"github.com/programme-lv/contest-client/logger"
	"github.com/programme-lv/contest-client/srvcerror"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTimeout = 30 * time.Second
	defaultCaseTTL = 5 * time.Minute
	// max bytes of a response body kept in error debug info
	debugBodyLimit = 512
)

// Client talks to the contest backend REST api
type Client struct {
	baseURL    string
	httpClient *http.Client
	statClient *http.Client
	backoff    func() retry.Backoff
	caseTTL    time.Duration
	cache      *cache.Cache
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithBackoff sets the retry policy of idempotent requests
func WithBackoff(backoff func() retry.Backoff) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

func WithCaseTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.caseTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// DefaultBackoff makes up to three attempts
func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(2, b)
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		backoff:    DefaultBackoff,
		caseTTL:    defaultCaseTTL,
		logger: slog.Default().With(
			"module",
			"api",
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = cache.New(c.caseTTL, 2*c.caseTTL)
	if c.statClient == nil {
		c.statClient = newStatementClient(c.logger)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) newRequest(ctx context.Context, method string, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID, ok := logger.RequestID(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	return req, nil
}

// get fetches path into out, retrying network failures and 5xx responses
func (c *Client) get(ctx context.Context, path string, query url.Values, out any, failMsg string) error {
	attempt := 0
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}
		log := c.logger.With("path", path, "attempt", attempt, "request_id", req.Header.Get("X-Request-ID"))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("request failed", "error", err)
			return retry.RetryableError(srvcerror.ErrRequestFailed(failMsg).SetDebug(err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(srvcerror.ErrRequestFailed(failMsg).SetDebug(err))
		}
		if resp.StatusCode >= 500 {
			log.Debug("server error", "status", resp.StatusCode)
			return retry.RetryableError(statusError(resp.StatusCode, body, failMsg))
		}
		if resp.StatusCode >= 300 {
			return statusError(resp.StatusCode, body, failMsg)
		}
		if err := httpjson.DecodeData(body, out); err != nil {
			return srvcerror.ErrRequestFailed(failMsg).SetDebug(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	})
}

// send performs a non-idempotent request once
func (c *Client) send(req *http.Request, out any, fail func() *srvcerror.Error) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail().SetDebug(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail().SetDebug(err)
	}
	if resp.StatusCode >= 300 {
		return statusErrorFrom(resp.StatusCode, body, fail())
	}
	if err := httpjson.DecodeData(body, out); err != nil {
		return fail().SetDebug(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(status int, body []byte, failMsg string) *srvcerror.Error {
	return statusErrorFrom(status, body, srvcerror.ErrRequestFailed(failMsg))
}

// statusErrorFrom maps a failure response to a service error. The message
// in the body wins over the fallback's.
func statusErrorFrom(status int, body []byte, fallback *srvcerror.Error) *srvcerror.Error {
	code, msg := httpjson.DecodeError(body)

	var res *srvcerror.Error
	switch {
	case status == http.StatusTooManyRequests || code == srvcerror.ErrCodeRateLimited:
		res = srvcerror.ErrRateLimited()
	case status == http.StatusUnauthorized:
		res = srvcerror.ErrUnauthorized()
	default:
		res = fallback
	}
	if msg != "" {
		res = res.WithMessage(msg)
	}
	return res.
		SetHttpStatusCode(status).
		SetDebug(fmt.Errorf("http %d: %s", status, truncate(body, debugBodyLimit)))
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

func encodeJSON(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}

// IsUnauthorized reports whether the backend rejected the token
func IsUnauthorized(err error) bool {
	var srvcErr *srvcerror.Error
	return errors.As(err, &srvcErr) && srvcErr.ErrorCode() == srvcerror.ErrCodeUnauthorized
}
