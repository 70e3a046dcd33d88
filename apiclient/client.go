// Package apiclient is the HTTP client for the LexLink marketplace API. It
// attaches the current access token to every outgoing request and runs the
// refresh protocol when an access token expires mid-session, so callers see
// at most a single transparent renewal and never an auth loop.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/lexlink/client-go/store"
)

const (
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-ID"
	bearerPrefix        = "Bearer "

	defaultTimeout = 30 * time.Second
)

// Client wraps outbound requests to a fixed API root.
type Client struct {
	baseURL      string
	sessionStore store.Store
	httpClient   *http.Client
	refresher    *refreshTransport
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseTransport sets the transport the client chain ends in (primarily
// for testing).
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a Client rooted at baseURL. The sessionStore supplies the
// access token for the request phase and the refresh token for the renewal
// protocol.
func New(baseURL string, sessionStore store.Store, options ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		sessionStore: sessionStore,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range options {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.refresher = &refreshTransport{
		next:         base,
		baseURL:      c.baseURL,
		sessionStore: sessionStore,
	}
	c.httpClient.Transport = &bearerTransport{
		next:         c.refresher,
		sessionStore: sessionStore,
	}

	return c
}

// OnInvalidate registers the hook run after the refresh protocol tears the
// session down (refresh token rejected). The session controller uses this to
// force its unauthenticated state.
func (c *Client) OnInvalidate(hook func()) {
	c.refresher.onInvalidate = hook
}

// BaseURL returns the API root this client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request and decodes the envelope's data field into out
// (when out is non-nil). Non-2xx responses become a StatusError carrying the
// envelope message.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] json.Marshal body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "[Client.do] http.NewRequestWithContext")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Str("method", method).Str("path", path).Err(err).Msg("api request failed")
		return errors.Wrapf(err, "[Client.do] %s %s", method, path)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("api request")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "[Client.do] reading %s %s response", method, path)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Code: resp.StatusCode, Message: envelopeMessage(respBody)}
	}

	if out == nil {
		return nil
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return errors.Wrapf(err, "[Client.do] decoding %s %s envelope", method, path)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Wrapf(err, "[Client.do] decoding %s %s data", method, path)
	}
	return nil
}

// responseEnvelope is the backend's uniform response wrapper.
type responseEnvelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  string          `json:"status,omitempty"`
}

func envelopeMessage(body []byte) string {
	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}

// bearerTransport is the request phase: it attaches the current access token
// as a bearer credential when one is stored. Absence is legal, unauthenticated
// calls exist, so a missing token never fails the request.
type bearerTransport struct {
	next         http.RoundTripper
	sessionStore store.Store
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(headerAuthorization) == "" {
		if token, ok := t.sessionStore.Get(store.KeyAccessToken); ok && token != "" {
			out.Header.Set(headerAuthorization, bearerPrefix+token)
		}
	}
	if out.Header.Get(headerRequestID) == "" {
		out.Header.Set(headerRequestID, uuid.New().String())
	}
	return t.next.RoundTrip(out)
}
