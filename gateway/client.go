// Package gateway is the single point of outbound traffic to the storefront API. It attaches
// the persisted bearer token to every request and turns any 401 into a central sign-out and
// redirect to the login view.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/jrsteele09/go-storefront/navigation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderTwoFactorToken = "X-2FA-Token"

	contentTypeJSON = "application/json"
)

// TokenSource yields the current bearer token. It is consulted on every request and never
// cached, so a token written or deleted elsewhere takes effect on the next call.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// UnauthorizedHandler is invoked for every 401 response before any navigation happens.
type UnauthorizedHandler func(ctx context.Context)

// Client issues JSON requests against the storefront API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	tokens       TokenSource
	navigator    navigation.Navigator
	newRequestID func() string // request id generator (injectable for testing)

	handlersLock   sync.RWMutex
	onUnauthorized []UnauthorizedHandler
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a client-side timeout. Zero keeps the http.Client's own. It applies to
// a copy, so a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRequestIDGenerator sets the request id function (primarily for testing)
func WithRequestIDGenerator(fn func() string) ClientOption {
	return func(c *Client) {
		c.newRequestID = fn
	}
}

// New creates a Client rooted at baseURL (e.g. "http://localhost:8080/api").
func New(baseURL string, tokens TokenSource, navigator navigation.Navigator, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[gateway.New] baseURL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.Wrap(err, "[gateway.New] invalid baseURL")
	}
	if tokens == nil {
		return nil, errors.New("[gateway.New] token source is required")
	}
	if navigator == nil {
		return nil, errors.New("[gateway.New] navigator is required")
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{},
		tokens:       tokens,
		navigator:    navigator,
		newRequestID: func() string { return uuid.New().String() },
	}

	for _, opt := range options {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c, nil
}

// OnUnauthorized registers h to run on every 401 response, in registration order.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) {
	c.handlersLock.Lock()
	defer c.handlersLock.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, h)
}

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// RequestOption adjusts a Request before it is sent.
type RequestOption func(*Request)

// WithHeader sets an extra request header, e.g. the two-factor challenge token.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set(key, value)
	}
}

// WithQuery sets query parameters on the request
func WithQuery(query url.Values) RequestOption {
	return func(r *Request) {
		r.Query = query
	}
}

// Response is a successful (2xx) API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into out. An empty body (e.g. 204) leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.Wrap(err, "[Response.Decode]")
	}
	return nil
}

// Do sends req. A non-2xx status yields an *APIError; a 401 additionally runs the
// unauthorized handlers and, unless the login or register view is showing, navigates to
// the login view. Errors are always returned to the caller.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	requestID := httpReq.Header.Get(HeaderRequestID)
	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Str("request_id", requestID).Str("method", req.Method).Str("path", req.Path).Msg("api request failed")
		return nil, errors.Wrapf(err, "[Client.Do] %s %s", req.Method, req.Path)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Do] read body %s %s", req.Method, req.Path)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}, nil
	}

	apiErr := newAPIError(req, httpResp.StatusCode, body)
	if apiErr.Unauthorized() {
		c.handleUnauthorized(ctx)
	}
	return nil, apiErr
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, options ...RequestOption) error {
	req := Request{Method: http.MethodPost, Path: path, Body: body}
	for _, opt := range options {
		opt(&req)
	}
	return c.send(ctx, req, out)
}

func (c *Client) Patch(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, Request{Method: http.MethodPatch, Path: path, Query: query}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.send(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) send(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "[Client.Do] encode body %s %s", req.Method, req.Path)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.Do] build request %s %s", req.Method, req.Path)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(HeaderRequestID, c.newRequestID())

	// Read on every request; the session store may have replaced or removed it since the last call
	token, err := c.tokens.Get(ctx)
	switch {
	case err == nil && token != "":
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	case err != nil && !errors.Is(err, interrors.ErrNoToken):
		log.Warn().Err(err).Msg("reading bearer token failed, sending request without it")
	}

	return httpReq, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	c.handlersLock.RLock()
	handlers := append([]UnauthorizedHandler(nil), c.onUnauthorized...)
	c.handlersLock.RUnlock()

	for _, h := range handlers {
		h(ctx)
	}

	// Already on a public auth view: redirecting again would loop
	if navigation.IsPublic(c.navigator.CurrentView()) {
		return
	}
	c.navigator.Navigate(navigation.ViewLogin)
}

func newAPIError(req Request, status int, body []byte) *APIError {
	apiErr := &APIError{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, apiErr); err != nil {
			// Not the API's error shape (proxy page, plain text); keep only the status
			apiErr = &APIError{}
		}
	}
	apiErr.StatusCode = status
	apiErr.Method = req.Method
	apiErr.Path = req.Path
	return apiErr
}
