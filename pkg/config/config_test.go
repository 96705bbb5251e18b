package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracereplay.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
recording:
  dir: "fixtures"
  flush_each_record: false
replay:
  max_record_size: 1024
log:
  level: "debug"
  format: "text"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Recording.Dir != "fixtures" {
		t.Errorf("Recording.Dir: got %q", cfg.Recording.Dir)
	}
	if cfg.Recording.FlushEachRecord {
		t.Error("Recording.FlushEachRecord: expected false")
	}
	if cfg.Recording.BufferSize != 64*1024 {
		t.Errorf("Recording.BufferSize default: got %d", cfg.Recording.BufferSize)
	}
	if cfg.Replay.MaxRecordSize != 1024 {
		t.Errorf("Replay.MaxRecordSize: got %d", cfg.Replay.MaxRecordSize)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log: got %+v", cfg.Log)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Recording.FlushEachRecord || !cfg.Recording.SyncOnClose {
		t.Errorf("recording defaults: got %+v", cfg.Recording)
	}
	if cfg.Store.Type != "memory" {
		t.Errorf("Store.Type: got %q", cfg.Store.Type)
	}
	if cfg.Monitoring.Tracing.ServiceName != "tracereplay" {
		t.Errorf("ServiceName: got %q", cfg.Monitoring.Tracing.ServiceName)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TRACEREPLAY_LOG_LEVEL", "error")
	path := writeConfig(t, "log:\n  level: debug\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("env override: got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_PostgresNeedsDSN(t *testing.T) {
	path := writeConfig(t, "store:\n  type: postgres\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for postgres without dsn")
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_APIAndSecrets(t *testing.T) {
	path := writeConfig(t, `
store:
  type: redis
  dsn: "secret:redis_url"
api:
  addr: ":9090"
  rate_limit:
    rps: 5
    burst: 10
  auth:
    enable: true
    jwt_key: "k"
    api_keys: ["a", "b"]
secrets:
  provider: vault
  vault:
    address: "http://vault:8200"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Addr != ":9090" || cfg.API.RateLimit.RPS != 5 || cfg.API.RateLimit.Burst != 10 {
		t.Errorf("API: got %+v", cfg.API)
	}
	if len(cfg.API.Auth.APIKeys) != 2 || cfg.API.Auth.JWTTimeout != "1h" {
		t.Errorf("API.Auth: got %+v", cfg.API.Auth)
	}
	if cfg.Secrets.Provider != "vault" || cfg.Secrets.Vault.PathPrefix != "secret" {
		t.Errorf("Secrets: got %+v", cfg.Secrets)
	}
	if cfg.Remote.Timeout != "30s" {
		t.Errorf("Remote.Timeout default: got %q", cfg.Remote.Timeout)
	}
}

func TestValidate_AuthAndDurations(t *testing.T) {
	cfg := Default()
	cfg.API.Auth.Enable = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for auth without jwt_key")
	}
	cfg.API.Auth.JWTKey = "k"
	cfg.Remote.Timeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid remote.timeout")
	}
	cfg.Remote.Timeout = "5s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("", time.Minute); got != time.Minute {
		t.Errorf("empty: got %v", got)
	}
	if got := ParseDuration("bad", time.Minute); got != time.Minute {
		t.Errorf("bad: got %v", got)
	}
	if got := ParseDuration("2s", time.Minute); got != 2*time.Second {
		t.Errorf("2s: got %v", got)
	}
}
