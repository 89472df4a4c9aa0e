package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/auth"
)

// Authenticator prepares authentication for a backend request
type Authenticator interface {
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext applies authentication to an outgoing request
type AuthContext interface {
	ApplyToRequest(ctx context.Context, req *http.Request) error
}

// BearerAuth resolves a token from a TokenSource and rejects locally
// expired JWTs without contacting the backend.
type BearerAuth struct {
	tokens auth.TokenSource
	now    func() time.Time
}

// NewBearerAuth creates a bearer authenticator
func NewBearerAuth(tokens auth.TokenSource) *BearerAuth {
	return &BearerAuth{tokens: tokens, now: time.Now}
}

// Authenticate returns an auth context carrying the current token
func (a *BearerAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	if a.tokens == nil {
		return nil, auth.ErrNoToken
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckToken(token, a.now()); err != nil {
		return nil, err
	}

	return bearerContext(token), nil
}

type bearerContext string

// ApplyToRequest sets the Authorization header
func (t bearerContext) ApplyToRequest(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+string(t))
	return nil
}
