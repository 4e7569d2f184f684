package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

const service = "achieveit"

// Well-known secret names.
const (
	SessionSecret = "session_secret"
	GeminiAPIKey  = "gemini_api_key"
	DatabaseURL   = "database_url"
)

var (
	ErrNotFound    = errors.New("secret not found in keyring")
	ErrUnavailable = errors.New("OS keyring is not available")
)

// Names lists the secrets the CLI accepts.
func Names() []string {
	return []string{SessionSecret, GeminiAPIKey, DatabaseURL}
}

func Get(name string) (string, error) {
	val, err := gokeyring.Get(service, name)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, nil
}

func Set(name, value string) error {
	if value == "" {
		return errors.New("secret value cannot be empty")
	}
	if err := gokeyring.Set(service, name, value); err != nil {
		return fmt.Errorf("store %s in keyring: %w", name, err)
	}
	return nil
}

func Delete(name string) error {
	if err := gokeyring.Delete(service, name); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s from keyring: %w", name, err)
	}
	return nil
}
