package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoginPersists(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.Login("http://127.0.0.1:7466/", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, CredentialsFile))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	reloaded, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	key, ok := reloaded.APIKey("http://127.0.0.1:7466")
	if !ok || key != "secret" {
		t.Errorf("Expected stored key, got %q (%v)", key, ok)
	}
	if _, ok := reloaded.APIKey("http://other:1"); ok {
		t.Error("Expected no key for unknown backend")
	}
}

func TestLoginRejectsEmptyKey(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	if err := m.Login("http://x", "  "); err != ErrEmptyKey {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}
}

func TestLogoutRemovesFile(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewManager(dir)
	m.Login("http://a", "k1")
	m.Login("http://b", "k2")

	if err := m.Logout("http://a"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, ok := m.APIKey("http://b"); !ok {
		t.Error("Expected other backend kept")
	}

	if err := m.Logout("http://b"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, CredentialsFile)); !os.IsNotExist(err) {
		t.Errorf("Expected credentials file removed, got %v", err)
	}
}
