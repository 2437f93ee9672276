package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "outlook-todo"

// Keys under which secrets are stored.
const (
	GraphClientSecret = "ms_client_secret"
	IMAPPassword      = "imap_password"
)

// ErrNotFound is returned when the keyring has no entry for a key.
var ErrNotFound = keyring.ErrKeyNotFound

// Opener returns the keyring to use. Tests replace it with an in-memory ring.
var Opener = openKeyring

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/outlook-todo/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("outlook-todo-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a secret. Missing entries yield ErrNotFound.
func Get(key string) (string, error) {
	ring, err := Opener()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret.
func Set(key, value string) error {
	ring, err := Opener()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: serviceName + " " + key}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret.
func Delete(key string) error {
	ring, err := Opener()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
