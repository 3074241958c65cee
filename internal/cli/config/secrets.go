package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// ServiceName identifies the keyring namespace.
const ServiceName = "insight"

// ErrSecretNotFound is returned when a secret is not stored.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps credentials outside the config file.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// APIKeyName is the secret key holding the API key of provider.
func APIKeyName(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		p = "gemini"
	}
	return p + "_api_key"
}

// KeyringStore is a SecretStore on the OS keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the OS keyring under ServiceName.
func OpenKeyring() (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
		},
		KeychainTrustApplication: true,
		KeychainSynchronizable:   false,
		WinCredPrefix:            ServiceName,
		LibSecretCollectionName:  ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an existing keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Get returns the secret stored under key.
func (s *KeyringStore) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

// Set stores value under key.
func (s *KeyringStore) Set(key, value string) error {
	return s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: ServiceName + " " + key,
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KeyringStore) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// ResolveAPIKey fills cfg.LLM.APIKey from the store when neither the config
// nor the environment provided one. Ollama needs no key.
func ResolveAPIKey(cfg *Config, store SecretStore) error {
	if cfg.LLM.APIKey != "" || strings.EqualFold(cfg.LLM.Provider, "ollama") || store == nil {
		return nil
	}
	key, err := store.Get(APIKeyName(cfg.LLM.Provider))
	if errors.Is(err, ErrSecretNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg.LLM.APIKey = key
	return nil
}
