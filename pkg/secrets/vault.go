// Copyright 2026 fanjia1024
// HashiCorp Vault secret store

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
)

// logicalReader Vault KV 读取接口，便于测试替换
type logicalReader interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

type vaultStore struct {
	logical    logicalReader
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store；key 形如 "trace/dsn"，读取 <path_prefix>/data/trace 的 dsn 字段（KV v2）
func NewVaultStore(cfg config.VaultConfig) (Store, error) {
	if cfg.Address == "" {
		cfg.Address = "http://localhost:8200"
	}
	vc := vault.DefaultConfig()
	vc.Address = cfg.Address

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	return newVaultStore(client.Logical(), cfg.PathPrefix), nil
}

func newVaultStore(logical logicalReader, prefix string) *vaultStore {
	if prefix == "" {
		prefix = "secret"
	}
	return &vaultStore{logical: logical, pathPrefix: prefix}
}

// splitKey "trace/dsn" -> ("trace", "dsn")；无字段名时使用 "value"
func splitKey(key string) (path, field string) {
	if i := strings.LastIndex(key, "/"); i > 0 && i < len(key)-1 {
		return key[:i], key[i+1:]
	}
	return key, "value"
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	path, field := splitKey(key)
	secret, err := v.logical.ReadWithContext(ctx, fmt.Sprintf("%s/data/%s", v.pathPrefix, path))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	data := secret.Data
	// KV v2 将字段包在 data 下
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner
	}
	if s, ok := data[field].(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: field %s in %s", ErrNotFound, field, path)
}
