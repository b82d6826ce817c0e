package xhs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ratelimit"
	"github.com/CNHLAIA/XHS-Scraper/pkg/sign"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// DefaultTimeout applies when no timeout option is given
const DefaultTimeout = 30 * time.Second

// RequiredCookies must be present and non-blank for an authenticated session
var RequiredCookies = []string{"a1", "web_session"}

// Request describes a single API call
type Request struct {
	Method  string
	Path    string
	Params  map[string]any    // query string, GET only
	Payload map[string]any    // JSON body, POST only
	Headers map[string]string // merged over the signed headers
}

// Client executes signed, rate-limited requests against the XHS web API.
// It is created Closed; Open builds the transport and Close tears it down.
// A Client is safe for concurrent use once open.
type Client struct {
	cookies         map[string]string
	signer          sign.Signer
	limiter         ratelimit.Limiter
	timeout         time.Duration
	baseURL         string
	userAgent       string
	transport       http.RoundTripper
	requiredCookies []string
	logger          logger.Logger

	rate    float64
	burst   float64
	rateSet bool

	mu         sync.RWMutex
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithSigner sets the signing capability used for every request
func WithSigner(s sign.Signer) Option {
	return func(c *Client) { c.signer = s }
}

// WithRateLimit paces requests to rate per second with the given burst.
// A burst <= 0 defaults to rate, and never to less than one request.
func WithRateLimit(rate, burst float64) Option {
	return func(c *Client) {
		c.rate = rate
		c.burst = burst
		c.rateSet = true
	}
}

// WithLimiter installs a pre-built limiter, shared across clients
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithTimeout sets the per-request transport timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent overrides the default browser user agent
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithBaseURL points the client at another host, mainly for tests
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTransport replaces the HTTP round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithRequiredCookies overrides which cookies must be present.
// QR login uses a guest session that only carries a1.
func WithRequiredCookies(names ...string) Option {
	return func(c *Client) { c.requiredCookies = names }
}

// NewClient validates its inputs and returns a Closed client. Validation
// failures are invalid-configuration errors and happen before any network
// resource is created.
func NewClient(cookies map[string]string, opts ...Option) (*Client, error) {
	c := &Client{
		timeout:         DefaultTimeout,
		baseURL:         BaseURL,
		userAgent:       DefaultUserAgent,
		requiredCookies: RequiredCookies,
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(cookies) == 0 {
		return nil, xerrors.InvalidConfig("cookies must be a non-empty mapping")
	}
	var missing []string
	for _, name := range c.requiredCookies {
		if strings.TrimSpace(cookies[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, xerrors.InvalidConfig("missing required cookies: %s", strings.Join(missing, ", "))
	}
	if c.signer == nil {
		return nil, xerrors.InvalidConfig("a request signer is required")
	}
	if c.timeout <= 0 {
		return nil, xerrors.InvalidConfig("timeout must be positive, got %s", c.timeout)
	}
	if c.limiter == nil && c.rateSet {
		burst := c.burst
		if burst <= 0 {
			burst = math.Max(c.rate, 1)
		}
		tb, err := ratelimit.NewTokenBucket(c.rate, burst)
		if err != nil {
			return nil, err
		}
		c.limiter = tb
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	c.logger = c.logger.WithField("component", "xhs")

	c.cookies = make(map[string]string, len(cookies))
	for k, v := range cookies {
		c.cookies[k] = v
	}
	return c, nil
}

// Cookies returns a copy of the session cookies
func (c *Client) Cookies() map[string]string {
	out := make(map[string]string, len(c.cookies))
	for k, v := range c.cookies {
		out[k] = v
	}
	return out
}

// IsOpen reports whether the transport session exists
func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient != nil
}

// Open creates the transport session. Opening an open client is a no-op.
func (c *Client) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient != nil {
		return nil
	}

	base, err := url.Parse(c.baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return xerrors.InvalidConfig("invalid base URL %q", c.baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	jarCookies := make([]*http.Cookie, 0, len(c.cookies))
	for name, value := range c.cookies {
		jarCookies = append(jarCookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(base, jarCookies)

	c.httpClient = &http.Client{
		Timeout:   c.timeout,
		Jar:       jar,
		Transport: c.transport,
	}

	c.logger.DebugWithFields("Session opened", map[string]interface{}{
		"base_url": c.baseURL,
		"cookies":  len(c.cookies),
		"timeout":  c.timeout,
	})
	return nil
}

// Close releases the transport. It is safe to call more than once, or on a
// client that was never opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	c.httpClient = nil
	c.logger.Debug("Session closed")
	return nil
}

func (c *Client) session() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// Get is shorthand for a GET Do
func (c *Client) Get(ctx context.Context, path string, params map[string]any) (map[string]any, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Params: params})
}

// Post is shorthand for a POST Do
func (c *Client) Post(ctx context.Context, path string, payload map[string]any, headers map[string]string) (map[string]any, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Payload: payload, Headers: headers})
}

// Do signs and sends one request and classifies the result. A 2xx JSON
// object body is returned verbatim; everything else becomes exactly one
// *errors.Error. Signer errors are returned unchanged.
func (c *Client) Do(ctx context.Context, r Request) (map[string]any, error) {
	httpClient := c.session()
	if httpClient == nil {
		return nil, xerrors.Usage("client is not open; call Open before issuing requests")
	}

	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method != http.MethodGet && method != http.MethodPost {
		return nil, xerrors.InvalidConfig("method must be GET or POST, got %q", r.Method)
	}
	path, err := NormalizePath(r.Path)
	if err != nil {
		return nil, err
	}

	params := r.Params
	if params == nil {
		params = map[string]any{}
	}
	payload := r.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	var signed sign.Headers
	if method == http.MethodGet {
		signed, err = c.signer.SignGET(path, params, c.Cookies())
	} else {
		signed, err = c.signer.SignPOST(path, payload, c.Cookies())
	}
	if err != nil {
		return nil, err
	}
	headers := sign.Merge(signed, r.Headers)

	req, err := c.buildRequest(ctx, method, path, params, payload, headers)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := c.logger.WithFields(map[string]interface{}{
		"request_id": requestID,
		"method":     method,
		"path":       path,
	})
	log.Debug("Sending API request")

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithError(err).Warn("API request failed")
		return nil, xerrors.API(0, err.Error(), nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.API(0, fmt.Sprintf("failed to read response body: %v", err), nil)
	}
	logger.LogRequest(log, method, path, resp.StatusCode, time.Since(start))

	return c.classify(log, resp.StatusCode, raw)
}

func (c *Client) buildRequest(ctx context.Context, method, path string, params, payload map[string]any, headers sign.Headers) (*http.Request, error) {
	target := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if q := EncodeParams(params); q != "" {
			target += "?" + q
		}
	} else {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, xerrors.InvalidConfig("payload is not JSON-encodable: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, xerrors.InvalidConfig("failed to create request: %v", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Origin", WebOrigin)
	req.Header.Set("Referer", WebOrigin+"/")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// classify turns a status and body into the parsed object or one error
func (c *Client) classify(log logger.Logger, status int, raw []byte) (map[string]any, error) {
	var parsed map[string]any
	isObject := json.Unmarshal(raw, &parsed) == nil && parsed != nil

	if status >= 200 && status < 300 {
		if !isObject {
			log.WarnWithFields("Response is not a JSON object", map[string]interface{}{
				"body_preview": preview(raw),
			})
			return nil, xerrors.API(status, "invalid JSON response", map[string]any{"text": string(raw)})
		}
		return parsed, nil
	}

	message := ExtractErrorMessage(raw)
	if !isObject {
		parsed = nil
	}
	apiErr := xerrors.FromStatus(status, message, parsed)
	log.WarnWithFields("API returned error", map[string]interface{}{
		"status":     status,
		"error_type": string(apiErr.Type),
		"message":    message,
	})
	return nil, apiErr
}

// ExtractErrorMessage returns the first non-blank string among the usual
// error keys of a JSON object body, or the raw body text otherwise.
func ExtractErrorMessage(raw []byte) string {
	if gjson.ValidBytes(raw) {
		doc := gjson.ParseBytes(raw)
		if doc.IsObject() {
			for _, key := range []string{"message", "msg", "error", "error_message"} {
				v := doc.Get(key)
				if v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
					return v.Str
				}
			}
		}
	}
	return string(raw)
}

func preview(raw []byte) string {
	s := string(raw)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
