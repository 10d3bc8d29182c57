// Package apiclient talks JSON and multipart to the pass-request API and maps
// every failure onto the client error taxonomy.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/models"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/logger"
	"github.com/noah-isme/pass-request-client/pkg/middleware/requestid"
)

const (
	// FilesField is the multipart field the API reads attachments from.
	FilesField = "files"
	// BoundaryPrefix starts every multipart boundary.
	BoundaryPrefix = "Boundary-"
)

// TokenSource yields the current bearer token; an empty token means anonymous.
type TokenSource interface {
	Load(ctx context.Context) (string, error)
}

// Observer receives one sample per completed HTTP exchange. Status is zero
// when no response arrived.
type Observer interface {
	ObserveAPIRequest(method, route string, status int, duration time.Duration)
}

// File is one multipart attachment.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Request describes a single API call. Endpoint is relative to the base URL.
// Route, when set, replaces Endpoint as the metrics label so ids stay out of
// label values. Body is ignored for GET and when Files is non-empty.
type Request struct {
	Method   string
	Endpoint string
	Route    string
	Query    url.Values
	Body     any
	Files    []File
}

// Client is a thin authenticated HTTP client.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	logger   *zap.Logger
	observer Observer

	timeout    time.Duration
	hasTimeout bool
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets a whole-request timeout. Zero leaves requests unbounded.
// The timeout is applied to a copy of the http.Client, never to the caller's.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver records request metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New builds a client for baseURL. A malformed base URL surfaces as an
// InvalidURL error on the first call.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hasTimeout {
		h := *c.http
		h.Timeout = c.timeout
		c.http = &h
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes req and decodes a 2xx body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Endpoint, req.Query)
	if err != nil {
		return err
	}

	body, contentType, err := encodeBody(method, req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidURL.Code, 0, appErrors.ErrInvalidURL.Message)
	}
	reqID := requestid.Generate()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestid.HeaderKey, reqID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token := c.bearer(ctx); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	route := req.Route
	if route == "" {
		route = req.Endpoint
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		latency := time.Since(start)
		c.observe(method, route, 0, latency)
		c.logger.Warn("api_request_failed", append(logger.RequestFields(method, req.Endpoint, 0, latency, reqID), zap.Error(err))...)
		return appErrors.Wrap(err, appErrors.ErrTransport.Code, 0, appErrors.ErrTransport.Message)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	c.observe(method, route, resp.StatusCode, latency)
	if err != nil {
		c.logger.Warn("api_response_read_failed", append(logger.RequestFields(method, req.Endpoint, resp.StatusCode, latency, reqID), zap.Error(err))...)
		return appErrors.Wrap(err, appErrors.ErrTransport.Code, resp.StatusCode, appErrors.ErrTransport.Message)
	}
	c.logger.Debug("api_request", logger.RequestFields(method, req.Endpoint, resp.StatusCode, latency, reqID)...)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return serverError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return appErrors.Clone(appErrors.ErrNoData, "")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDecoding.Code, resp.StatusCode, appErrors.ErrDecoding.Message)
	}
	return nil
}

func (c *Client) resolve(endpoint string, query url.Values) (string, error) {
	invalid := func(err error) error {
		return appErrors.Wrap(err, appErrors.ErrInvalidURL.Code, 0, appErrors.ErrInvalidURL.Message)
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", invalid(err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return "", invalid(fmt.Errorf("base url %q must be absolute http(s)", c.baseURL))
	}

	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", invalid(err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", invalid(fmt.Errorf("endpoint %q must be relative", endpoint))
	}

	u := base.JoinPath(ref.Path)
	q := ref.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) bearer(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Load(ctx)
	if err != nil {
		c.logger.Warn("token_load_failed", zap.Error(err))
		return ""
	}
	return token
}

func (c *Client) observe(method, route string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveAPIRequest(method, route, status, d)
	}
}

func encodeBody(method string, req Request) (io.Reader, string, error) {
	if len(req.Files) > 0 {
		return encodeMultipart(req.Files)
	}
	if method == http.MethodGet || req.Body == nil {
		return nil, "", nil
	}
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "encode request body")
	}
	return bytes.NewReader(payload), "application/json", nil
}

func encodeMultipart(files []File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(BoundaryPrefix + uuid.NewString()); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "set multipart boundary")
	}

	for i, f := range files {
		field := f.Field
		if field == "" {
			field = FilesField
		}
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("image%d.jpg", i)
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, name))
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "create multipart part")
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "write multipart part")
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnknown.Code, 0, "close multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

func serverError(status int, payload []byte) error {
	var envelope models.ErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
		if msg != "" {
			return appErrors.Server(status, msg)
		}
	}
	return appErrors.Server(status, "")
}
