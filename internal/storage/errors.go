package storage

import "errors"

var (
	// ErrTokenNotFound is returned when no token has been saved
	ErrTokenNotFound = errors.New("saved token not found")

	// ErrPassphraseRequired is returned when the saved token is encrypted and no passphrase is configured
	ErrPassphraseRequired = errors.New("saved token is encrypted; set CONSOLE_TOKEN_PASSPHRASE")

	// ErrWrongPassphrase is returned when the saved token cannot be decrypted
	ErrWrongPassphrase = errors.New("saved token could not be decrypted with the configured passphrase")
)
