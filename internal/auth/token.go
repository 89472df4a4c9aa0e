package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrNoToken is returned when no bearer token is available
	ErrNoToken = errors.New("no bearer token available")

	// ErrTokenExpired is returned when the token's exp claim is in the past
	ErrTokenExpired = errors.New("bearer token expired")
)

// TokenSource yields the bearer credential of the signed-in user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, e.g. from the environment.
type StaticToken string

// Token returns the token or ErrNoToken when it is empty
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FirstOf tries sources in order and returns the first token found.
// Errors other than ErrNoToken stop the search.
func FirstOf(sources ...TokenSource) TokenSource {
	return chain(sources)
}

type chain []TokenSource

func (c chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		token, err := src.Token(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNoToken) {
			return "", err
		}
	}
	return "", ErrNoToken
}

// Claims is the subset of the backend's JWT claims the console uses.
type Claims struct {
	Subject   string
	UserID    string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The signing secret lives on the backend; this is only used to spot
// expired tokens before a round trip.
func InspectToken(token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	out := &Claims{}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	switch id := claims["id"].(type) {
	case string:
		out.UserID = id
	case float64:
		out.UserID = fmt.Sprintf("%.0f", id)
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}

// CheckToken returns ErrTokenExpired for a JWT whose exp is before now.
// Tokens that are not JWTs are opaque to the client and pass.
func CheckToken(token string, now time.Time) error {
	claims, err := InspectToken(token)
	if err != nil {
		return nil
	}
	if !claims.ExpiresAt.IsZero() && !now.Before(claims.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// ParseBearer extracts the token from an Authorization: Bearer <token> header.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	if parts[1] == "" {
		return "", errors.New("empty bearer token")
	}
	return parts[1], nil
}
