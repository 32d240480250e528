package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "jonoseba"
	sessionKey  = "session-token"
)

// ErrNoSession is returned by Load when no token has been stored.
var ErrNoSession = errors.New("no stored session")

// Ring is the subset of keyring.Keyring used for session storage.
type Ring interface {
	Get(key string) (keyring.Item, error)
	Set(item keyring.Item) error
	Remove(key string) error
}

// Session stores the portal session token in the OS keyring and keeps
// the current token in memory for request signing.
type Session struct {
	ring Ring

	mu    sync.RWMutex
	token string
}

// NewSession wraps an already opened keyring.
func NewSession(ring Ring) *Session {
	return &Session{ring: ring}
}

// OpenSession opens the system keyring, using configDir for the
// encrypted file backend on systems without a native keychain.
func OpenSession(configDir string) (*Session, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("jonoseba-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewSession(ring), nil
}

// Save stores the session token.
func (s *Session) Save(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   sessionKey,
		Data:  []byte(token),
		Label: "JonoSeba session",
	})
	if err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}
	s.set(token)
	return nil
}

// Load returns the stored session token, or ErrNoSession.
func (s *Session) Load() (string, error) {
	item, err := s.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("reading session token: %w", err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoSession
	}
	s.set(string(item.Data))
	return string(item.Data), nil
}

// Clear removes the stored session token. Clearing an absent session is
// not an error.
func (s *Session) Clear() error {
	s.set("")
	err := s.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing session token: %w", err)
	}
	return nil
}

// Token returns the token last saved or loaded, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}
