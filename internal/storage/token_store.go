package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/auth"
)

const tokenFileVersion = 1

// SavedToken is a bearer token persisted by `console login`.
type SavedToken struct {
	Token   string
	Email   string
	SavedAt time.Time
}

// tokenFile is the on-disk layout. Exactly one of Token or Sealed is set.
type tokenFile struct {
	Version int       `json:"version"`
	Email   string    `json:"email,omitempty"`
	SavedAt time.Time `json:"saved_at"`
	Token   string    `json:"token,omitempty"`
	Salt    string    `json:"salt,omitempty"`
	Sealed  string    `json:"sealed,omitempty"`
}

// TokenStore keeps the login token in a 0600 file, encrypted when a
// passphrase is configured. It implements auth.TokenSource.
type TokenStore struct {
	path       string
	passphrase string
	now        func() time.Time
}

// NewTokenStore creates a store for the given file path
func NewTokenStore(path, passphrase string) *TokenStore {
	return &TokenStore{
		path:       path,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// Path returns the token file location
func (s *TokenStore) Path() string {
	return s.path
}

// Save writes the token, replacing any previous one atomically.
func (s *TokenStore) Save(token, email string) error {
	if token == "" {
		return fmt.Errorf("refusing to save an empty token")
	}

	file := tokenFile{
		Version: tokenFileVersion,
		Email:   email,
		SavedAt: s.now().UTC(),
	}

	if s.passphrase == "" {
		file.Token = token
	} else {
		salt, err := NewSalt()
		if err != nil {
			return err
		}
		enc, err := NewEncryptionFromPassphrase(s.passphrase, salt)
		if err != nil {
			return err
		}
		sealed, err := enc.Encrypt([]byte(token))
		if err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
		file.Salt = base64.StdEncoding.EncodeToString(salt)
		file.Sealed = sealed
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Load reads the saved token
func (s *TokenStore) Load() (*SavedToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var file tokenFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	if file.Version != tokenFileVersion {
		return nil, fmt.Errorf("unsupported token file version %d", file.Version)
	}

	saved := &SavedToken{Email: file.Email, SavedAt: file.SavedAt}

	switch {
	case file.Sealed != "":
		if s.passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		salt, err := base64.StdEncoding.DecodeString(file.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode token salt: %w", err)
		}
		enc, err := NewEncryptionFromPassphrase(s.passphrase, salt)
		if err != nil {
			return nil, err
		}
		plaintext, err := enc.Decrypt(file.Sealed)
		if err != nil {
			return nil, ErrWrongPassphrase
		}
		saved.Token = string(plaintext)
	case file.Token != "":
		saved.Token = file.Token
	default:
		return nil, ErrTokenNotFound
	}

	return saved, nil
}

// Token implements auth.TokenSource
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	saved, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", auth.ErrNoToken
		}
		return "", err
	}
	return saved.Token, nil
}

// Clear deletes the saved token. A missing file is not an error.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
