// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	vault "github.com/hashicorp/vault/api"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		wantErr     bool
		errContains string
	}{
		{name: "default", provider: "", wantErr: false},
		{name: "memory", provider: "memory", wantErr: false},
		{name: "env", provider: "env", wantErr: false},
		{name: "unknown provider", provider: "k8s", wantErr: true, errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(config.SecretsConfig{Provider: tc.provider})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if tc.errContains != "" && !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, want contains %q", err.Error(), tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatalf("store should not be nil")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[string]string{"dsn": "postgres://x"})

	got, err := Resolve(ctx, store, "plain-value")
	if err != nil || got != "plain-value" {
		t.Fatalf("plain: got %q, %v", got, err)
	}
	got, err = Resolve(ctx, store, "secret:dsn")
	if err != nil || got != "postgres://x" {
		t.Fatalf("ref: got %q, %v", got, err)
	}
	if _, err := Resolve(ctx, store, "secret:missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}
	if _, err := Resolve(ctx, store, "secret:"); err == nil {
		t.Fatal("empty ref: expected error")
	}
}

func TestResolveConfig_Env(t *testing.T) {
	t.Setenv("TRACE_TEST_DSN", "redis://localhost:6379/0")
	t.Setenv("TRACE_TEST_KEY", "k1")
	cfg := config.Default()
	cfg.Store.DSN = "secret:TRACE_TEST_DSN"
	cfg.API.Auth.APIKeys = []string{"literal", "secret:TRACE_TEST_KEY"}

	if err := ResolveConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.Store.DSN != "redis://localhost:6379/0" {
		t.Errorf("Store.DSN: got %q", cfg.Store.DSN)
	}
	if cfg.API.Auth.APIKeys[0] != "literal" || cfg.API.Auth.APIKeys[1] != "k1" {
		t.Errorf("APIKeys: got %v", cfg.API.Auth.APIKeys)
	}
}

func TestResolveConfig_NoRefsSkipsProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.Provider = "k8s"
	if err := ResolveConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ResolveConfig without refs should not touch the provider: %v", err)
	}
}

type fakeLogical map[string]*vault.Secret

func (f fakeLogical) ReadWithContext(_ context.Context, path string) (*vault.Secret, error) {
	return f[path], nil
}

func TestVaultStore_Get(t *testing.T) {
	ctx := context.Background()
	store := newVaultStore(fakeLogical{
		"secret/data/trace": {Data: map[string]interface{}{
			"data": map[string]interface{}{"dsn": "postgres://vault", "value": "v"},
		}},
	}, "")

	got, err := store.Get(ctx, "trace/dsn")
	if err != nil || got != "postgres://vault" {
		t.Fatalf("trace/dsn: got %q, %v", got, err)
	}
	got, err = store.Get(ctx, "trace")
	if err != nil || got != "v" {
		t.Fatalf("trace: got %q, %v", got, err)
	}
	if _, err := store.Get(ctx, "trace/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing field: got %v", err)
	}
	if _, err := store.Get(ctx, "other/dsn"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing path: got %v", err)
	}
}

func TestSplitKey(t *testing.T) {
	cases := map[string][2]string{
		"trace/dsn": {"trace", "dsn"},
		"a/b/c":     {"a/b", "c"},
		"trace":     {"trace", "value"},
		"trace/":    {"trace/", "value"},
	}
	for in, want := range cases {
		p, f := splitKey(in)
		if p != want[0] || f != want[1] {
			t.Errorf("splitKey(%q) = %q, %q; want %v", in, p, f, want)
		}
	}
}
