package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
)

func TestDefaults(t *testing.T) {
	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		t.Fatalf("process: %v", err)
	}

	if s.MaxSessions != 10 {
		t.Errorf("MaxSessions = %d, want 10", s.MaxSessions)
	}
	if s.ConnectionTimeout != 10*time.Second {
		t.Errorf("ConnectionTimeout = %s, want 10s", s.ConnectionTimeout)
	}
	if s.SessionTimeout != 30*time.Minute {
		t.Errorf("SessionTimeout = %s, want 30m", s.SessionTimeout)
	}
	if s.BufferSize != 8192 {
		t.Errorf("BufferSize = %d, want 8192", s.BufferSize)
	}
	if s.CommandTimeout != 10*time.Second {
		t.Errorf("CommandTimeout = %s, want 10s", s.CommandTimeout)
	}
	if s.ExpiryInterval != time.Minute || s.HealthInterval != 15*time.Second {
		t.Errorf("sweep intervals = %s/%s, want 1m0s/15s", s.ExpiryInterval, s.HealthInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SSHMON_TERMINAL_MAX_SESSIONS", "3")
	t.Setenv("SSHMON_SSH_SESSION_TIMEOUT", "0s")
	t.Setenv("SSHMON_ALLOWED_ORIGINS", "example.com,*.example.org")

	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		t.Fatalf("process: %v", err)
	}

	if s.MaxSessions != 3 {
		t.Errorf("MaxSessions = %d, want 3", s.MaxSessions)
	}
	if s.SessionTimeout != 0 {
		t.Errorf("SessionTimeout = %s, want 0", s.SessionTimeout)
	}
	if len(s.AllowedOrigins) != 2 || s.AllowedOrigins[1] != "*.example.org" {
		t.Errorf("AllowedOrigins = %v", s.AllowedOrigins)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "SSHMON_TERMINAL_MAX_SESSIONS=3\nSSHMON_LISTEN_ADDR=:7000\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)

	// Registered so the values godotenv sets are removed afterwards.
	t.Setenv("SSHMON_TERMINAL_MAX_SESSIONS", "")
	os.Unsetenv("SSHMON_TERMINAL_MAX_SESSIONS")
	t.Setenv("SSHMON_LISTEN_ADDR", ":9999")

	saved := Cfg
	defer func() { Cfg = saved }()
	Load()

	if Cfg.MaxSessions != 3 {
		t.Errorf("MaxSessions = %d, want 3 from .env", Cfg.MaxSessions)
	}
	if Cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, environment should win over .env", Cfg.ListenAddr)
	}
}
