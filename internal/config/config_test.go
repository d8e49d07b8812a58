package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Backend: BackendConfig{Driver: "mongo"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid driver")
	}

	expected := `backend.driver must be "elastic" or "sqlite", got "mongo"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ElasticRequiresURL(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Backend: BackendConfig{Driver: "elastic"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing backend url")
	}
}

func TestValidate_ValidDrivers(t *testing.T) {
	tests := []struct {
		name    string
		backend BackendConfig
	}{
		{"elastic", BackendConfig{Driver: "elastic", URL: "http://localhost:9200"}},
		{"sqlite", BackendConfig{Driver: "sqlite", Path: "test.db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				HTTP:    HTTPConfig{Port: 8080},
				Backend: tt.backend,
			}

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 0},
		Backend: BackendConfig{Driver: "sqlite", Path: "test.db"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_CacheRequiresAddrs(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Backend: BackendConfig{Driver: "sqlite", Path: "test.db"},
		Cache:   CacheConfig{Enabled: true},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for enabled cache without addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Backend.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %q", cfg.Backend.Driver)
	}
	if cfg.Backend.TimeoutSec != 30 {
		t.Errorf("expected TimeoutSec=30, got %d", cfg.Backend.TimeoutSec)
	}
	if cfg.Scroll.FetchSize != 1000 {
		t.Errorf("expected FetchSize=1000, got %d", cfg.Scroll.FetchSize)
	}
	if cfg.Scroll.BacktrackingWindow != 1000 {
		t.Errorf("expected BacktrackingWindow=1000, got %d", cfg.Scroll.BacktrackingWindow)
	}
	if cfg.Scroll.KeepAliveSec != 60 {
		t.Errorf("expected KeepAliveSec=60, got %d", cfg.Scroll.KeepAliveSec)
	}
	if cfg.Search.MaxResultWindow != 10000 {
		t.Errorf("expected MaxResultWindow=10000, got %d", cfg.Search.MaxResultWindow)
	}
	if cfg.Cache.TTLSec != 300 {
		t.Errorf("expected TTLSec=300, got %d", cfg.Cache.TTLSec)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 5, WriteTimeoutSec: 60, ShutdownSec: 5},
		Backend: BackendConfig{Driver: "elastic", TimeoutSec: 15},
		Scroll:  ScrollConfig{FetchSize: 200, BacktrackingWindow: 50, KeepAliveSec: 120},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("expected ReadTimeoutSec=5, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Backend.Driver != "elastic" {
		t.Errorf("expected Driver=elastic, got %q", cfg.Backend.Driver)
	}
	if cfg.Scroll.FetchSize != 200 {
		t.Errorf("expected FetchSize=200, got %d", cfg.Scroll.FetchSize)
	}
	if cfg.Scroll.BacktrackingWindow != 50 {
		t.Errorf("expected BacktrackingWindow=50, got %d", cfg.Scroll.BacktrackingWindow)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEXTDEX_TEST_URL", "http://es.internal:9200")

	in := []byte("url: ${TEXTDEX_TEST_URL}\npassword: ${TEXTDEX_TEST_MISSING:-secret}\n")
	out := string(expandEnvVars(in))

	want := "url: http://es.internal:9200\npassword: secret\n"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	data := []byte(`
http:
  port: 9090
backend:
  driver: sqlite
  path: /tmp/test.db
auth:
  api_keys:
    - key-one
`)
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Backend.Path != "/tmp/test.db" {
		t.Errorf("expected path /tmp/test.db, got %q", cfg.Backend.Path)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "key-one" {
		t.Errorf("unexpected api keys: %v", cfg.Auth.APIKeys)
	}
	// defaults applied on load
	if cfg.Scroll.FetchSize != 1000 {
		t.Errorf("expected FetchSize=1000, got %d", cfg.Scroll.FetchSize)
	}
}
