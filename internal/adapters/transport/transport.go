package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/voiceprint/internal/adapters/credentials"
	"github.com/okian/voiceprint/internal/domain/apierr"
	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/pkg/logger"
	"github.com/okian/voiceprint/pkg/metrics"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 8 << 20
)

// Meta carries the per-call flags of the API: whether the call skips the bearer
// token and whether a failure raises a user-visible toast.
type Meta struct {
	IgnoreAuth bool
	Toast      bool
}

// CacheFor is the GET cache policy. Expire 0 always revalidates.
type CacheFor struct {
	Expire time.Duration
}

// Request describes one API call.
type Request struct {
	Op       string // metrics/log label, e.g. "list_voiceprints"
	Method   string
	Path     string // joined to the base URL, must start with "/"
	Body     any    // JSON encoded when non-nil
	Meta     Meta
	CacheFor CacheFor
}

// Resolver yields the API base URL.
type Resolver interface {
	BaseURL() string
}

type staticURL string

func (s staticURL) BaseURL() string { return string(s) }

// StaticURL returns a Resolver with a fixed base URL.
func StaticURL(url string) Resolver {
	return staticURL(strings.TrimRight(strings.TrimSpace(url), "/"))
}

// Notifier shows transient error messages to the user.
type Notifier interface {
	Toast(ctx context.Context, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, message string)

// Toast implements Notifier.
func (f NotifierFunc) Toast(ctx context.Context, message string) { f(ctx, message) }

type logNotifier struct {
	logger logger.Logger
}

func (n logNotifier) Toast(ctx context.Context, message string) {
	n.logger.Warn(ctx, message)
}

// Client is the shared typed HTTP client. It is safe for concurrent use.
type Client struct {
	resolver    Resolver
	httpClient  *http.Client
	timeout     time.Duration
	credentials credentials.Provider
	notifier    Notifier
	logger      logger.Logger
	cacheSize   int
	now         func() time.Time
	cache       *responseCache
}

// New creates a Client with functional options.
func New(opts ...Option) *Client {
	c := &Client{
		timeout: defaultTimeout,
		logger:  logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.notifier == nil {
		c.notifier = logNotifier{logger: c.logger}
	}
	c.cache = newResponseCache(c.cacheSize, c.now)
	return c
}

// BaseURL returns the currently resolved base URL.
func (c *Client) BaseURL() string {
	if c.resolver == nil {
		return ""
	}
	return c.resolver.BaseURL()
}

// Credentials returns the token source, nil when none was configured.
func (c *Client) Credentials() credentials.Provider { return c.credentials }

// Do performs req and decodes the envelope's data into T. A null or absent
// data field yields T's zero value.
func Do[T any](ctx context.Context, c *Client, req *Request) (T, error) {
	var out T
	data, err := c.do(ctx, req)
	if err != nil {
		return out, err
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		perr := apierr.Wrap(req.Op, apierr.KindParse, apierr.MsgParseFailed, err)
		c.finishError(ctx, req, perr)
		return out, perr
	}
	return out, nil
}

// Get issues a GET.
func Get[T any](ctx context.Context, c *Client, op, path string, meta Meta, cacheFor CacheFor) (T, error) {
	return Do[T](ctx, c, &Request{Op: op, Method: http.MethodGet, Path: path, Meta: meta, CacheFor: cacheFor})
}

// Post issues a POST with a JSON body.
func Post[T any](ctx context.Context, c *Client, op, path string, body any, meta Meta) (T, error) {
	return Do[T](ctx, c, &Request{Op: op, Method: http.MethodPost, Path: path, Body: body, Meta: meta})
}

// Put issues a PUT with a JSON body.
func Put[T any](ctx context.Context, c *Client, op, path string, body any, meta Meta) (T, error) {
	return Do[T](ctx, c, &Request{Op: op, Method: http.MethodPut, Path: path, Body: body, Meta: meta})
}

// Delete issues a DELETE.
func Delete[T any](ctx context.Context, c *Client, op, path string, meta Meta) (T, error) {
	return Do[T](ctx, c, &Request{Op: op, Method: http.MethodDelete, Path: path, Meta: meta})
}

// do returns the raw data field of a successful envelope.
func (c *Client) do(ctx context.Context, req *Request) (json.RawMessage, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	start := time.Now()
	data, status, err := c.roundTrip(ctx, req)
	elapsed := time.Since(start)

	fields := []logger.Field{
		logger.String("op", req.Op),
		logger.String("method", req.Method),
		logger.String("path", req.Path),
		logger.Int("status", status),
		logger.Duration("elapsed", elapsed),
	}
	durationMs := float64(elapsed.Microseconds()) / 1000
	if err != nil {
		_ = metrics.RecordRequest(req.Op, req.Method, metrics.OutcomeError, durationMs)
		c.logger.Debug(ctx, "api call failed", append(fields, logger.Error(err))...)
		c.finishError(ctx, req, err)
		return nil, err
	}
	_ = metrics.RecordRequest(req.Op, req.Method, metrics.OutcomeSuccess, durationMs)
	c.logger.Debug(ctx, "api call", fields...)
	return data, nil
}

// finishError counts the failure and raises a toast when the call asks for one.
func (c *Client) finishError(ctx context.Context, req *Request, err error) {
	kind := apierr.KindOf(err)
	if kind == "" {
		kind = apierr.KindTransport
	}
	metrics.RecordError(req.Op, string(kind))
	if req.Meta.Toast {
		metrics.RecordToast()
		c.notifier.Toast(ctx, err.Error())
	}
}

func (c *Client) roundTrip(ctx context.Context, req *Request) (json.RawMessage, int, error) {
	base := c.BaseURL()
	if base == "" {
		return nil, 0, apierr.Wrap(req.Op, apierr.KindTransport, ErrNoBaseURL.Error(), ErrNoBaseURL)
	}
	url := base + req.Path

	cacheable := req.Method == http.MethodGet && req.CacheFor.Expire > 0
	if cacheable {
		if data, ok := c.cache.get(url); ok {
			metrics.RecordCacheLookup(metrics.CacheHit)
			return data, http.StatusOK, nil
		}
		metrics.RecordCacheLookup(metrics.CacheMiss)
	}

	httpReq, err := c.newHTTPRequest(ctx, req, url)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, apierr.Wrap(req.Op, apierr.KindTransport, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, apierr.Wrap(req.Op, apierr.KindTransport, "", fmt.Errorf("read response: %w", err))
	}

	env, decodeErr := model.DecodeEnvelope[json.RawMessage](body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		code := resp.StatusCode
		if decodeErr == nil && env.Msg != "" {
			msg = env.Msg
		}
		if decodeErr == nil && env.Code != nil && *env.Code != model.CodeOK {
			code = *env.Code
		}
		return nil, resp.StatusCode, apierr.Server(req.Op, resp.StatusCode, code, msg)
	}
	if decodeErr != nil {
		return nil, resp.StatusCode, apierr.Wrap(req.Op, apierr.KindParse, apierr.MsgParseFailed, decodeErr)
	}
	if !env.OK() {
		return nil, resp.StatusCode, apierr.Server(req.Op, resp.StatusCode, env.CodeValue(), env.Msg)
	}

	if cacheable {
		c.cache.put(url, env.Data, req.CacheFor.Expire)
	} else if req.Method != http.MethodGet {
		c.cache.purge()
	}
	return env.Data, resp.StatusCode, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request, url string) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apierr.Wrap(req.Op, apierr.KindInvalid, "", fmt.Errorf("marshal request body: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, apierr.Wrap(req.Op, apierr.KindInvalid, "", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !req.Meta.IgnoreAuth {
		token, err := c.token(ctx)
		if err != nil {
			return nil, apierr.Wrap(req.Op, apierr.KindAuthentication, apierr.MsgNotLoggedIn, err)
		}
		if token == "" {
			return nil, apierr.New(req.Op, apierr.KindAuthentication, apierr.MsgNotLoggedIn)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.credentials == nil {
		return "", nil
	}
	token, err := c.credentials.Token(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(token), nil
}
