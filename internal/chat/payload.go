package chat

import (
	"fmt"

	"github.com/asedra/lonage-ai-platform/internal/models"
)

// DefaultHostedModel is sent as the model name for hosted-API credentials
const DefaultHostedModel = "gpt-4"

// Payload is the chat request body. It is either HostedPayload or
// SelfHostedPayload.
type Payload interface {
	Provider() models.ProviderKind
}

// HostedPayload is sent for hosted-API credentials
type HostedPayload struct {
	ModelType models.ProviderKind   `json:"model_type"`
	Model     string                `json:"model"`
	APIKey    string                `json:"api_key"`
	Messages  []models.HistoryEntry `json:"messages"`
}

// Provider implements Payload
func (p HostedPayload) Provider() models.ProviderKind { return models.ProviderHostedAPI }

// SelfHostedPayload is sent for self-hosted endpoint credentials
type SelfHostedPayload struct {
	ModelType models.ProviderKind   `json:"model_type"`
	Model     string                `json:"model"`
	OllamaURL string                `json:"ollama_url"`
	Messages  []models.HistoryEntry `json:"messages"`
}

// Provider implements Payload
func (p SelfHostedPayload) Provider() models.ProviderKind { return models.ProviderSelfHosted }

// NewHostedPayload builds the body for a hosted-API credential
func NewHostedPayload(cred models.ModelCredential, hostedModel string, history []models.HistoryEntry) HostedPayload {
	if hostedModel == "" {
		hostedModel = DefaultHostedModel
	}
	return HostedPayload{
		ModelType: models.ProviderHostedAPI,
		Model:     hostedModel,
		APIKey:    cred.APIKey,
		Messages:  nonNil(history),
	}
}

// NewSelfHostedPayload builds the body for a self-hosted credential
func NewSelfHostedPayload(cred models.ModelCredential, history []models.HistoryEntry) SelfHostedPayload {
	return SelfHostedPayload{
		ModelType: models.ProviderSelfHosted,
		Model:     cred.ModelName,
		OllamaURL: cred.EndpointURL,
		Messages:  nonNil(history),
	}
}

// BuildPayload picks the payload shape for the credential's provider kind
func BuildPayload(cred models.ModelCredential, hostedModel string, history []models.HistoryEntry) (Payload, error) {
	switch cred.Kind {
	case models.ProviderHostedAPI:
		return NewHostedPayload(cred, hostedModel, history), nil
	case models.ProviderSelfHosted:
		return NewSelfHostedPayload(cred, history), nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidProviderKind, cred.Kind)
	}
}

func nonNil(history []models.HistoryEntry) []models.HistoryEntry {
	if history == nil {
		return []models.HistoryEntry{}
	}
	return history
}
