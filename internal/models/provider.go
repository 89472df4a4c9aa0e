package models

// ProviderKind enumerates how a model credential reaches a language model.
// The values are the wire names the backend uses.
type ProviderKind string

const (
	// ProviderHostedAPI is a third-party hosted inference API reached with a secret key.
	ProviderHostedAPI ProviderKind = "openai"

	// ProviderSelfHosted is a user-operated inference server at a configurable URL.
	ProviderSelfHosted ProviderKind = "ollama"
)

// String returns the wire representation of the kind
func (k ProviderKind) String() string {
	return string(k)
}

// IsValid reports whether k is one of the supported kinds
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderHostedAPI, ProviderSelfHosted:
		return true
	default:
		return false
	}
}

// Description returns a provider-neutral name for the kind
func (k ProviderKind) Description() string {
	switch k {
	case ProviderHostedAPI:
		return "hosted-API"
	case ProviderSelfHosted:
		return "self-hosted-endpoint"
	default:
		return "unknown"
	}
}
