package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/auth"
	"github.com/asedra/lonage-ai-platform/internal/logging"
	"github.com/asedra/lonage-ai-platform/internal/models"
)

const (
	modelsPath = "/api/ai-models/"
	chatPath   = "/api/chat/chat"
	loginPath  = "/api/auth/login"

	// assistants are mounted without the /api prefix
	assistantsPath = "/assistants/"

	maxErrorBody = 64 << 10
)

// Client talks to the platform backend over HTTP.
type Client struct {
	baseURL string
	auth    Authenticator
	client  *http.Client
}

// NewClient creates a backend client. A zero timeout leaves requests
// bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, tokens auth.TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    NewBearerAuth(tokens),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// BaseURL returns the backend base URL without trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModels fetches the model credentials visible to the current token.
// A null or empty array yields an empty slice.
func (c *Client) ListModels(ctx context.Context) ([]models.ModelCredential, error) {
	const op = "list models"

	body, err := c.do(ctx, op, http.MethodGet, modelsPath, nil, true)
	if err != nil {
		return nil, err
	}

	var list []models.ModelCredential
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, networkError(op, 0, "", fmt.Errorf("decoding model list: %w", err))
	}
	if list == nil {
		list = []models.ModelCredential{}
	}
	return list, nil
}

// CreateModel registers a new model credential
func (c *Client) CreateModel(ctx context.Context, req models.NewModelCredential) (*models.ModelCredential, error) {
	const op = "create model"

	body, err := c.do(ctx, op, http.MethodPost, modelsPath, req, true)
	if err != nil {
		return nil, err
	}

	var created models.ModelCredential
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, networkError(op, 0, "", fmt.Errorf("decoding created model: %w", err))
	}
	return &created, nil
}

// ListAssistants fetches the assistants owned by userID
func (c *Client) ListAssistants(ctx context.Context, userID string) ([]models.Assistant, error) {
	const op = "list assistants"

	body, err := c.do(ctx, op, http.MethodGet, assistantsPath+url.PathEscape(userID), nil, true)
	if err != nil {
		return nil, err
	}

	var list []models.Assistant
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, networkError(op, 0, "", fmt.Errorf("decoding assistant list: %w", err))
	}
	if list == nil {
		list = []models.Assistant{}
	}
	return list, nil
}

// CreateAssistant registers a new assistant persona
func (c *Client) CreateAssistant(ctx context.Context, req models.NewAssistant) (*models.Assistant, error) {
	const op = "create assistant"

	body, err := c.do(ctx, op, http.MethodPost, assistantsPath, req, true)
	if err != nil {
		return nil, err
	}

	var created models.Assistant
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, networkError(op, 0, "", fmt.Errorf("decoding created assistant: %w", err))
	}
	return &created, nil
}

// ChatReply is the decoded JSON object returned by the chat endpoint
type ChatReply struct {
	Fields map[string]any
}

// Text returns the first non-empty string among content and response.
func (r *ChatReply) Text() (string, bool) {
	for _, key := range []string{"content", "response"} {
		if s, ok := r.Fields[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Chat posts a chat payload. A success body that is not a JSON object is
// reported as ErrNetwork.
func (c *Client) Chat(ctx context.Context, payload any) (*ChatReply, error) {
	const op = "chat"

	body, err := c.do(ctx, op, http.MethodPost, chatPath, payload, true)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("response is not a JSON object")
		}
		return nil, networkError(op, 0, "", fmt.Errorf("decoding chat reply: %w", err))
	}
	return &ChatReply{Fields: fields}, nil
}

// User is the account returned on login
type User struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
}

// LoginResult is the token exchange response
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// Login exchanges email and password for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "login"

	creds := map[string]string{"email": email, "password": password}
	body, err := c.do(ctx, op, http.MethodPost, loginPath, creds, false)
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, networkError(op, 0, "", fmt.Errorf("decoding login response: %w", err))
	}
	if result.AccessToken == "" {
		return nil, networkError(op, 0, "", errors.New("login response has no access_token"))
	}
	return &result, nil
}

// Forward relays a request to the backend unchanged and returns the raw
// response. The caller must close the body.
func (c *Client) Forward(ctx context.Context, method, path string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for _, name := range []string{"Authorization", "Content-Type", "Accept"} {
		if v := header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, networkError("forward "+path, 0, "", err)
	}
	return resp, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any, authenticated bool) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authenticated {
		authCtx, err := c.auth.Authenticate(ctx)
		if err != nil {
			return nil, authError(op, 0, "", err)
		}
		if err := authCtx.ApplyToRequest(ctx, req); err != nil {
			return nil, fmt.Errorf("%s: failed to apply auth: %w", op, err)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, networkError(op, 0, "", err)
	}
	defer resp.Body.Close()

	logging.Debugf("backend %s %s -> %d in %s", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := ErrorDetail(data)
		if detail != "" {
			logging.Warningf("backend %s failed with status %d: %s", op, resp.StatusCode, detail)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, authError(op, resp.StatusCode, detail, nil)
		}
		return nil, networkError(op, resp.StatusCode, detail, nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(op, resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}
	return data, nil
}

// ErrorDetail extracts the backend's detail or error field from an error
// body. Non-string details are returned as compact JSON.
func ErrorDetail(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "error"} {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			return compact.String()
		}
	}
	return ""
}
