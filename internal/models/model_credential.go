package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidProviderKind is returned when a credential's type is neither openai nor ollama
	ErrInvalidProviderKind = errors.New("model type must be 'openai' or 'ollama'")

	// ErrMissingAPIKey is returned when a hosted-API credential has no key
	ErrMissingAPIKey = errors.New("api_key is required for openai models")

	// ErrMissingEndpoint is returned when a self-hosted credential has no base URL
	ErrMissingEndpoint = errors.New("ollama_url is required for ollama models")

	// ErrMissingModelName is returned when a self-hosted credential has no model name
	ErrMissingModelName = errors.New("ollama_model is required for ollama models")

	// ErrMixedProviderFields is returned when fields of the other provider kind are set
	ErrMixedProviderFields = errors.New("credential mixes hosted-API and self-hosted fields")
)

// createdAtLayouts are tried in order; the backend emits naive ISO timestamps.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ModelCredential is one configured way to reach a language-model backend.
// Exactly one provider-specific field group is populated, chosen by Kind.
type ModelCredential struct {
	ID        string       `json:"id"`
	Kind      ProviderKind `json:"type"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`

	// hosted-API
	APIKey string `json:"api_key,omitempty"`

	// self-hosted-endpoint
	EndpointURL string `json:"ollama_url,omitempty"`
	ModelName   string `json:"ollama_model,omitempty"`
}

// UnmarshalJSON accepts numeric or string ids and naive timestamps.
func (m *ModelCredential) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Type        string          `json:"type"`
		Name        string          `json:"name"`
		CreatedAt   string          `json:"created_at"`
		APIKey      *string         `json:"api_key"`
		OllamaURL   *string         `json:"ollama_url"`
		OllamaModel *string         `json:"ollama_model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return fmt.Errorf("decoding model id: %w", err)
	}

	*m = ModelCredential{
		ID:          id,
		Kind:        ProviderKind(raw.Type),
		Name:        raw.Name,
		CreatedAt:   parseCreatedAt(raw.CreatedAt),
		APIKey:      deref(raw.APIKey),
		EndpointURL: deref(raw.OllamaURL),
		ModelName:   deref(raw.OllamaModel),
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// parseCreatedAt is lenient: the timestamp is display-only, so an unknown
// format yields the zero time rather than failing the whole list.
func parseCreatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Validate checks that exactly the field group matching Kind is populated.
func (m ModelCredential) Validate() error {
	switch m.Kind {
	case ProviderHostedAPI:
		if m.APIKey == "" {
			return ErrMissingAPIKey
		}
		if m.EndpointURL != "" || m.ModelName != "" {
			return ErrMixedProviderFields
		}
	case ProviderSelfHosted:
		if m.EndpointURL == "" {
			return ErrMissingEndpoint
		}
		if m.ModelName == "" {
			return ErrMissingModelName
		}
		if m.APIKey != "" {
			return ErrMixedProviderFields
		}
	default:
		return ErrInvalidProviderKind
	}
	return nil
}

// Label is the short human label used by model pickers.
func (m ModelCredential) Label() string {
	switch m.Kind {
	case ProviderHostedAPI:
		return "OpenAI - GPT"
	case ProviderSelfHosted:
		return "Ollama - " + m.ModelName
	default:
		return m.Name
	}
}

// String never includes the API key.
func (m ModelCredential) String() string {
	return fmt.Sprintf("%s [%s] %s", m.ID, m.Kind.Description(), m.Name)
}

// NewModelCredential is the create-form payload for a model credential.
type NewModelCredential struct {
	Name        string       `json:"name"`
	Kind        ProviderKind `json:"type"`
	APIKey      string       `json:"api_key,omitempty"`
	EndpointURL string       `json:"ollama_url,omitempty"`
	ModelName   string       `json:"ollama_model,omitempty"`
}

// Validate mirrors the backend's create schema so bad input is rejected
// before a round trip.
func (n NewModelCredential) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return errors.New("name is required")
	}
	if !n.Kind.IsValid() {
		return ErrInvalidProviderKind
	}
	if n.Kind == ProviderSelfHosted && n.EndpointURL != "" {
		if err := ValidateEndpointURL(n.EndpointURL); err != nil {
			return err
		}
	}
	return ModelCredential{
		Kind:        n.Kind,
		APIKey:      n.APIKey,
		EndpointURL: n.EndpointURL,
		ModelName:   n.ModelName,
	}.Validate()
}

// ValidateEndpointURL accepts absolute http(s) URLs only.
func ValidateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ollama_url %q is not an http(s) URL", raw)
	}
	return nil
}
