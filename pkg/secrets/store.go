// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JackYoustra/TCATestRecording/pkg/config"
)

// RefPrefix 标记配置值为 secret 引用，如 store.dsn: "secret:trace_dsn"
const RefPrefix = "secret:"

// ErrNotFound secret 不存在
var ErrNotFound = errors.New("secrets: not found")

// Store 只读 secret 来源
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)
}

// NewStore 按配置创建 Secret Store
func NewStore(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(nil), nil
	case "vault":
		return NewVaultStore(cfg.Vault)
	default:
		return nil, fmt.Errorf("secrets: unsupported secret provider %q", cfg.Provider)
	}
}

// IsRef 判断配置值是否为 secret 引用
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Resolve 解析 secret:<key> 引用；普通值原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, RefPrefix)
	if key == "" {
		return "", fmt.Errorf("secrets: empty reference %q", value)
	}
	v, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("secrets: resolve %q: %w", key, err)
	}
	return v, nil
}

// ResolveConfig 原地解析配置中可能为引用的敏感字段；无引用时不创建 Store
func ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := []*string{&cfg.Store.DSN, &cfg.API.Auth.JWTKey, &cfg.Remote.APIKey}
	for i := range cfg.API.Auth.APIKeys {
		fields = append(fields, &cfg.API.Auth.APIKeys[i])
	}
	var store Store
	for _, f := range fields {
		if !IsRef(*f) {
			continue
		}
		if store == nil {
			var err error
			if store, err = NewStore(cfg.Secrets); err != nil {
				return err
			}
		}
		v, err := Resolve(ctx, store, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
