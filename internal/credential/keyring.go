// Package credential keeps per-account tokens in the operating system
// keyring, falling back to an encrypted file store where no keyring
// service exists.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

const serviceName = "calendar-mcp"

// ErrNotFound is returned by Get when no value is stored under a key.
var ErrNotFound = errors.New("credential not found")

var backendNames = map[string]keyring.BackendType{
	"keychain":       keyring.KeychainBackend,
	"secret-service": keyring.SecretServiceBackend,
	"wincred":        keyring.WinCredBackend,
	"pass":           keyring.PassBackend,
	"file":           keyring.FileBackend,
}

// Store reads and writes credentials in a keyring. It is safe for
// concurrent use.
type Store struct {
	mu   sync.Mutex
	ring keyring.Keyring
}

// New wraps an already opened keyring. Tests pass keyring.NewArrayKeyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a store backed by the system keyring.
func Open(cfg model.CredentialsConfig) (*Store, error) {
	allowed := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	if cfg.Backend != "" {
		b, ok := backendNames[strings.ToLower(cfg.Backend)]
		if !ok {
			return nil, fmt.Errorf("unknown keyring backend %q", cfg.Backend)
		}
		allowed = []keyring.BackendType{b}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          allowed,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("calendar-mcp-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "calendar-mcp " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key. Deleting a missing key is not an
// error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// TokenKey is the keyring key holding an account's token.
func TokenKey(accountID string) string {
	return "token-" + strings.ToLower(accountID)
}

// LoadToken returns the cached token for an account, or (nil, nil) when
// none is stored.
func (s *Store) LoadToken(accountID string) (*oauth2.Token, error) {
	data, err := s.Get(TokenKey(accountID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, fmt.Errorf("decoding token for %s: %w", accountID, err)
	}
	return &tok, nil
}

// SaveToken caches tok for an account.
func (s *Store) SaveToken(accountID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token for %s: %w", accountID, err)
	}
	return s.Set(TokenKey(accountID), string(data))
}

// DeleteToken forgets an account's token.
func (s *Store) DeleteToken(accountID string) error {
	return s.Delete(TokenKey(accountID))
}
