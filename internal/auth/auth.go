// Package auth stores API keys for agent backends on disk so the CLI does not
// need --api-key on every invocation.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CredentialsFile is the file name under the autopilot home directory.
const CredentialsFile = "credentials.json"

// ErrEmptyKey is returned when saving a blank API key.
var ErrEmptyKey = errors.New("api key is empty")

// Entry is the stored credential for one backend.
type Entry struct {
	APIKey  string    `json:"api_key"`
	SavedAt time.Time `json:"saved_at"`
}

// Credentials maps a normalized API address to its entry.
type Credentials struct {
	Backends map[string]Entry `json:"backends"`
}

// Manager reads and writes the credentials file.
type Manager struct {
	configDir   string
	credentials Credentials
	mu          sync.RWMutex
}

// NewManager creates a manager rooted at configDir, loading any existing
// credentials.
func NewManager(configDir string) (*Manager, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configDir:   configDir,
		credentials: Credentials{Backends: map[string]Entry{}},
	}
	if err := m.loadCredentials(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return m, nil
}

// APIKey returns the stored key for addr.
func (m *Manager) APIKey(addr string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.credentials.Backends[normalize(addr)]
	if !ok || e.APIKey == "" {
		return "", false
	}
	return e.APIKey, true
}

// Backends lists the addresses with a stored key.
func (m *Manager) Backends() map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Entry, len(m.credentials.Backends))
	for k, v := range m.credentials.Backends {
		out[k] = v
	}
	return out
}

// Login stores key for addr.
func (m *Manager) Login(addr, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	m.credentials.Backends[normalize(addr)] = Entry{APIKey: key, SavedAt: time.Now().UTC()}
	m.mu.Unlock()

	return m.saveCredentials()
}

// Logout forgets the key for addr. The file is removed once empty.
func (m *Manager) Logout(addr string) error {
	m.mu.Lock()
	delete(m.credentials.Backends, normalize(addr))
	empty := len(m.credentials.Backends) == 0
	m.mu.Unlock()

	if !empty {
		return m.saveCredentials()
	}
	if err := os.Remove(m.credentialsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

func (m *Manager) credentialsPath() string {
	return filepath.Join(m.configDir, CredentialsFile)
}

func (m *Manager) loadCredentials() error {
	data, err := os.ReadFile(m.credentialsPath())
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}
	if creds.Backends == nil {
		creds.Backends = map[string]Entry{}
	}

	m.mu.Lock()
	m.credentials = creds
	m.mu.Unlock()
	return nil
}

func (m *Manager) saveCredentials() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.credentials, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	return os.WriteFile(m.credentialsPath(), data, 0600)
}

func normalize(addr string) string {
	return strings.TrimRight(strings.TrimSpace(addr), "/")
}
