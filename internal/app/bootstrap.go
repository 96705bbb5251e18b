// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"context"
	"fmt"

	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
	"github.com/JackYoustra/TCATestRecording/pkg/secrets"
)

// Bootstrap 统一初始化：解析 secret 引用、创建日志与 trace 归档存储
type Bootstrap struct {
	Config *config.Config
	Logger *log.Logger
	Store  tracestore.Store
}

// NewBootstrap 根据配置创建 Bootstrap；cfg 为 nil 时使用默认配置
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := secrets.ResolveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("解析 secret 失败: %w", err)
	}
	logger, err := log.NewLogger(cfg.Log.Logger())
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	store, err := tracestore.Open(ctx, cfg.Store)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("初始化 trace 存储失败: %w", err)
	}
	if cfg.Store.Type == "" || cfg.Store.Type == "memory" {
		logger.Warn("使用内存存储，进程退出后归档数据丢失")
	}
	return &Bootstrap{Config: cfg, Logger: logger, Store: store}, nil
}

// Close 释放存储与日志文件
func (b *Bootstrap) Close() error {
	var err error
	if b.Store != nil {
		err = b.Store.Close()
	}
	if cerr := b.Logger.Close(); err == nil {
		err = cerr
	}
	return err
}
