package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/delta/fusion"
	"github.com/etnz/delta/session"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got, want := cfg.API.URL, "http://localhost:8081/api"; got != want {
		t.Errorf("API.URL got %q, want %q", got, want)
	}
	if got, want := cfg.API.Timeout, 10*time.Second; got != want {
		t.Errorf("API.Timeout got %v, want %v", got, want)
	}
	if got, want := cfg.Cadence(), fusion.DefaultCadence; got != want {
		t.Errorf("Cadence() got %v, want %v", got, want)
	}
	if got, want := cfg.Wallet.SettleDelay, 2*time.Second; got != want {
		t.Errorf("Wallet.SettleDelay got %v, want %v", got, want)
	}
	if _, ok := cfg.Store().(*session.FileStore); !ok {
		t.Errorf("Store() got %T, want *session.FileStore", cfg.Store())
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DELTA_API_URL", "http://example.test/api")
	t.Setenv("DELTA_POLL_PRICES", "250ms")
	t.Setenv("DELTA_SESSION_STORE", "redis")
	t.Setenv("DELTA_REDIS_DB", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got, want := cfg.API.URL, "http://example.test/api"; got != want {
		t.Errorf("API.URL got %q, want %q", got, want)
	}
	if got, want := cfg.Poll.Prices, 250*time.Millisecond; got != want {
		t.Errorf("Poll.Prices got %v, want %v", got, want)
	}
	if got, want := cfg.Redis.DB, 3; got != want {
		t.Errorf("Redis.DB got %v, want %v", got, want)
	}
	if _, ok := cfg.Store().(*session.RedisStore); !ok {
		t.Errorf("Store() got %T, want *session.RedisStore", cfg.Store())
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "delta.env")
	if err := os.WriteFile(path, []byte("DELTA_WALLET_CLOSE_DELAY=5s\nDELTA_LOG_LEVEL=debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override, make sure the variables are unset afterwards.
	t.Setenv("DELTA_WALLET_CLOSE_DELAY", "")
	os.Unsetenv("DELTA_WALLET_CLOSE_DELAY")
	t.Setenv("DELTA_LOG_LEVEL", "")
	os.Unsetenv("DELTA_LOG_LEVEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}
	if got, want := cfg.Wallet.CloseDelay, 5*time.Second; got != want {
		t.Errorf("Wallet.CloseDelay got %v, want %v", got, want)
	}
	if _, err := cfg.Logger(); err != nil {
		t.Errorf("Logger() unexpected error: %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.env")); err == nil {
		t.Errorf("Load(missing) expected an error")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DELTA_SESSION_STORE", "memory"},
		{"DELTA_POLL_CHART", "0s"},
		{"DELTA_API_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("Load() with %s=%s expected an error", tt.key, tt.value)
			}
		})
	}
}
