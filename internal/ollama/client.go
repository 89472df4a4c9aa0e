// Package ollama reads the model catalogue of a self-hosted Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/logging"
)

const (
	tagsPath = "/api/tags"

	defaultTimeout = 10 * time.Second
	maxTagsBody    = 4 << 20
)

var (
	// ErrUnreachable is returned when the server cannot be contacted
	ErrUnreachable = errors.New("ollama server unreachable")

	// ErrInvalidResponse is returned for non-200 answers and bodies in no known format
	ErrInvalidResponse = errors.New("invalid response from ollama server")

	// ErrNoModels is returned when the server lists no models
	ErrNoModels = errors.New("ollama server has no models")

	// ErrModelNotServed is returned when a requested model is not in the catalogue
	ErrModelNotServed = errors.New("model is not served by this ollama server")
)

// Client lists the models an Ollama server has pulled.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout uses a short default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListModels returns the model names from /api/tags in server order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTagsBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	names, err := ParseTags(body)
	if err != nil {
		return nil, err
	}
	logging.Debugf("ollama %s serves %d models", c.baseURL, len(names))
	if len(names) == 0 {
		return nil, ErrNoModels
	}
	return names, nil
}

// Resolve checks name against the catalogue. Without a name, a catalogue of
// exactly one model resolves to it. "llama3" matches "llama3:latest".
func (c *Client) Resolve(ctx context.Context, name string) (string, []string, error) {
	names, err := c.ListModels(ctx)
	if err != nil {
		return "", nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		if len(names) == 1 {
			return names[0], names, nil
		}
		return "", names, nil
	}

	if found, ok := Match(names, name); ok {
		return found, names, nil
	}
	return "", names, fmt.Errorf("%w: %q", ErrModelNotServed, name)
}

// Match finds name in names, treating a missing tag as ":latest".
func Match(names []string, name string) (string, bool) {
	for _, n := range names {
		if n == name {
			return n, true
		}
	}
	if !strings.Contains(name, ":") {
		for _, n := range names {
			if n == name+":latest" {
				return n, true
			}
		}
	}
	return "", false
}

// ParseTags extracts model names from a tags body. Three shapes are
// accepted: {"models":[{"name":...}]}, a bare array of names or objects,
// and {"models":"a,b"}.
func ParseTags(body []byte) ([]string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	switch v := doc.(type) {
	case []any:
		return namesOf(v), nil
	case map[string]any:
		switch models := v["models"].(type) {
		case []any:
			return namesOf(models), nil
		case string:
			var names []string
			for _, part := range strings.Split(models, ",") {
				if part = strings.TrimSpace(part); part != "" {
					names = append(names, part)
				}
			}
			return names, nil
		}
	}
	return nil, fmt.Errorf("%w: unrecognised tags format", ErrInvalidResponse)
}

func namesOf(items []any) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				names = append(names, v)
			}
		case map[string]any:
			name, _ := v["name"].(string)
			if name == "" {
				name, _ = v["model"].(string)
			}
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
