package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
)

// Client calls the relay API. The base URL includes the base path, for
// example "http://localhost:3000/api".
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateSession creates a session. A blank title gets the server default.
func (c *Client) CreateSession(ctx context.Context, title string) (relay.Session, error) {
	var body sessionBody
	if err := c.do(ctx, http.MethodPost, "/sessions", createSessionBody{Title: title}, &body); err != nil {
		return relay.Session{}, err
	}
	return body.session()
}

// ListSessions returns sessions, most recently active first.
func (c *Client) ListSessions(ctx context.Context) ([]relay.Session, error) {
	var body sessionListBody
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &body); err != nil {
		return nil, err
	}
	sessions := make([]relay.Session, 0, len(body.Sessions))
	for _, b := range body.Sessions {
		s, err := b.session()
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// FindSession returns a session, or an *Error with status 404.
func (c *Client) FindSession(ctx context.Context, id string) (relay.Session, error) {
	var body sessionBody
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &body); err != nil {
		return relay.Session{}, err
	}
	return body.session()
}

// DeleteSession deletes a session and its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	var body deleteBody
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, &body)
}

// ListMessages returns a session's messages in replay order. An empty
// session ID lists every message.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]relay.Message, error) {
	path := "/messages"
	if sessionID != "" {
		path += "?" + url.Values{"sessionId": {sessionID}}.Encode()
	}
	var body messageListBody
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	msgs := make([]relay.Message, 0, len(body.Messages))
	for _, b := range body.Messages {
		m, err := b.message()
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Health reports the server status.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var body healthBody
	if err := c.do(ctx, http.MethodGet, "/health", nil, &body); err != nil {
		return Health{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	if err != nil {
		return Health{}, fmt.Errorf("http: health timestamp: %w", err)
	}
	return Health{Status: body.Status, Timestamp: ts.UTC()}, nil
}

// Chat submits a turn and returns its frame stream. Failures the server
// answers synchronously come back as *Error; failures after the stream
// opened arrive as a relay.ErrorFrame. The caller must close the stream.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (relay.FrameStream, error) {
	resp, err := c.send(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return sse.NewReader(resp.Body), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("http: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("http: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return resp, nil
}

func parseError(resp *http.Response) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Details: err.Error()}
	}
	var body errorBody
	if err := json.Unmarshal(b, &body); err != nil || body.Error == "" {
		return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Details: strings.TrimSpace(string(b))}
	}
	return &Error{Status: resp.StatusCode, Message: body.Error, Details: body.Details}
}
