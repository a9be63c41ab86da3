package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOPILOT_HOME", dir)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIAddr != "http://127.0.0.1:7466" {
		t.Errorf("Unexpected api_addr %q", cfg.APIAddr)
	}
	if cfg.LogLimit != 50 || cfg.HistoryLimit != 100 || cfg.HistoryConcurrency != 4 {
		t.Errorf("Unexpected limits: %+v", cfg)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Unexpected timeout %v", cfg.Timeout)
	}
	if cfg.DBPath != filepath.Join(dir, "autopilot.db") {
		t.Errorf("Unexpected db_path %q", cfg.DBPath)
	}
	if err := cfg.RequireAgent(); err == nil {
		t.Error("Expected RequireAgent to fail without agent")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOPILOT_HOME", dir)
	t.Setenv("AUTOPILOT_API_KEY", "from-env")

	yaml := "api_addr: https://api.example.com/\nagent_id: agent-7\ntimeout: 3s\nlog_limit: 20\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIAddr != "https://api.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.APIAddr)
	}
	if cfg.AgentID != "agent-7" || cfg.Timeout != 3*time.Second || cfg.LogLimit != 20 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("Expected env api key, got %q", cfg.APIKey)
	}
}

func TestLoad_OverrideMissing(t *testing.T) {
	t.Setenv("AUTOPILOT_HOME", t.TempDir())
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOPILOT_HOME", dir)
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api_addr: localhost:7466\n"), 0644)

	if _, err := Load(viper.New(), ""); err == nil || !strings.Contains(err.Error(), "api_addr") {
		t.Errorf("Expected api_addr error, got %v", err)
	}

	cfg := &Config{APIAddr: "http://x", LogLimit: 1, HistoryLimit: 1, HistoryConcurrency: 1, LogLevel: "loud"}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected invalid log level error")
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "task", "task-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info suppressed at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "task=task-1") {
		t.Errorf("Unexpected log output: %q", out)
	}
}
