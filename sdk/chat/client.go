// Package chat implements the streaming chat session controller for the
// stocktool assistant API: a client that starts a model response over
// HTTP(S), decodes the incremental event stream, tracks live tool activity,
// and resolves each send to exactly one terminal outcome while allowing
// user-initiated cancellation at any point.
//
// Example usage:
//
//	client := chat.NewClient("http://localhost:8000",
//	    chat.WithTokenSource(chat.StaticToken("secret")))
//	store := chat.NewMemoryStore()
//
//	session := chat.NewSession(client, store, nil)
//	if err := session.Start(ctx, chat.ChatRequest{Prompt: "price of AAPL", ModelID: "gpt-4o"}); err != nil {
//	    return err
//	}
//	for snap := range session.Updates() {
//	    // render snap.Text, snap.Tools, snap.Phase
//	}
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenSource supplies the bearer credential for outbound requests and can
// exchange it for a fresh one after an authorization failure.
type TokenSource interface {
	Token() string
	Refresh(ctx context.Context) error
}

// StaticToken is a TokenSource with a fixed credential. Refresh is a no-op
// that reports failure, so a 401 with a static token is terminal.
type StaticToken string

// Token returns the fixed credential.
func (t StaticToken) Token() string { return string(t) }

// Refresh always fails: there is nothing to exchange.
func (t StaticToken) Refresh(ctx context.Context) error {
	return fmt.Errorf("static token cannot be refreshed")
}

// RefreshingToken obtains replacement credentials from the auth refresh
// endpoint. It is safe for use from multiple requests.
type RefreshingToken struct {
	mu         sync.Mutex
	token      string
	refreshURL string
	httpClient *http.Client
}

// NewRefreshingToken creates a TokenSource seeded with an initial credential.
func NewRefreshingToken(initial, refreshURL string, httpClient *http.Client) *RefreshingToken {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RefreshingToken{
		token:      initial,
		refreshURL: refreshURL,
		httpClient: httpClient,
	}
}

// Token returns the current credential.
func (t *RefreshingToken) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Refresh exchanges the current credential for a new one.
func (t *RefreshingToken) Refresh(ctx context.Context) error {
	t.mu.Lock()
	current := t.token
	t.mu.Unlock()

	body, err := json.Marshal(map[string]string{"token": current})
	if err != nil {
		return fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("refresh failed: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("refresh response carried no token")
	}

	t.mu.Lock()
	t.token = result.Token
	t.mu.Unlock()
	return nil
}

// Client is the HTTP client for the assistant API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	retry      RetryConfig
	logger     *Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTokenSource sets the credential source for bearer authorization.
func WithTokenSource(t TokenSource) ClientOption {
	return func(client *Client) {
		client.tokens = t
	}
}

// WithRetryConfig overrides the connection retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retry = cfg
	}
}

// WithLogger sets the client logger.
func WithLogger(l *Logger) ClientOption {
	return func(client *Client) {
		if l != nil {
			client.logger = l
		}
	}
}

// NewClient creates a new assistant API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:  DefaultRetryConfig(),
		logger: GetLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// String creates a string pointer (helper for optional fields).
func String(s string) *string {
	return &s
}

// Stream is an open response stream. The caller must Close it.
type Stream struct {
	// Body is the live response body to decode.
	Body io.ReadCloser
	// Degraded marks a response whose content type was not the expected
	// event stream. Tolerated, logged as a warning.
	Degraded bool
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.Body.Close()
}

// StreamChat begins a streamed model response for req. Connection
// establishment runs under the retry policy (including the one-shot
// credential refresh on 401); once the stream is open, the body is the
// caller's to consume and errors on it are not retried.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	connect := func(ctx context.Context) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
		if c.tokens != nil {
			httpReq.Header.Set("Authorization", "Bearer "+c.tokens.Token())
		}

		// No client timeout on the streaming request itself; the response
		// body stays open for the life of the stream.
		streamClient := &http.Client{Transport: c.httpClient.Transport}
		return streamClient.Do(httpReq)
	}

	resp, err := connectWithRetry(ctx, c.retry, c.tokens, c.logger, connect)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	degraded := false
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "text/event-stream" {
		c.logger.Warn("unexpected content type on stream response",
			"content_type", resp.Header.Get("Content-Type"))
		degraded = true
	}

	return &Stream{Body: resp.Body, Degraded: degraded}, nil
}

// Health checks the server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
