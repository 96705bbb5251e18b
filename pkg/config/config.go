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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JackYoustra/TCATestRecording/pkg/log"
)

// envPrefix 环境变量前缀，如 TRACEREPLAY_RECORDING_DIR 覆盖 recording.dir
const envPrefix = "TRACEREPLAY"

// Config 应用配置结构体
type Config struct {
	Recording  RecordingConfig  `mapstructure:"recording"`
	Replay     ReplayConfig     `mapstructure:"replay"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	API        APIConfig        `mapstructure:"api"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// RecordingConfig 录制会话配置
type RecordingConfig struct {
	Dir             string `mapstructure:"dir"`               // 录制文件默认目录，CLI 用于解析相对路径
	BufferSize      int    `mapstructure:"buffer_size"`       // Sink 写缓冲字节数，<=0 使用默认 64KB
	FlushEachRecord bool   `mapstructure:"flush_each_record"` // 每条记录后 flush，便于边写边读
	SyncOnClose     bool   `mapstructure:"sync_on_close"`     // Close 时 fsync
}

// ReplayConfig 解码/回放配置
type ReplayConfig struct {
	MaxRecordSize int `mapstructure:"max_record_size"` // 单条记录最大字节数，超出视为损坏
}

// StoreConfig trace 归档存储配置
type StoreConfig struct {
	Type string `mapstructure:"type"` // memory | sqlite | postgres | redis
	DSN  string `mapstructure:"dsn"`  // 连接串（postgres://…、redis://… 或 sqlite 文件路径），非 memory 时必填；可写作 secret:<key>
}

// APIConfig trace 归档服务配置
type APIConfig struct {
	Addr      string          `mapstructure:"addr"`      // HTTP 监听地址
	GRPCAddr  string          `mapstructure:"grpc_addr"` // gRPC 健康检查监听地址，空则不启动
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// RateLimitConfig 写入接口令牌桶限流；RPS<=0 不限流
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	Enable        bool     `mapstructure:"enable"`
	JWTKey        string   `mapstructure:"jwt_key"`
	JWTTimeout    string   `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string   `mapstructure:"jwt_max_refresh"` // 如 "1h"
	APIKeys       []string `mapstructure:"api_keys"`        // 登录时可换取 token 的 key
}

// RemoteConfig CLI 访问远端归档服务的配置
type RemoteConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout string `mapstructure:"timeout"`
}

// SecretsConfig secret:<key> 形式配置值的解析来源
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | vault | memory
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// Logger 转换为 pkg/log 的配置
func (c LogConfig) Logger() *log.Config {
	return &log.Config{Level: c.Level, Format: c.Format, File: c.File}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("recording.dir", ".")
	v.SetDefault("recording.buffer_size", 64*1024)
	v.SetDefault("recording.flush_each_record", true)
	v.SetDefault("recording.sync_on_close", true)
	v.SetDefault("replay.max_record_size", 16*1024*1024)
	v.SetDefault("store.type", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.tracing.service_name", "tracereplay")
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.auth.jwt_timeout", "1h")
	v.SetDefault("api.auth.jwt_max_refresh", "1h")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.vault.path_prefix", "secret")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default 返回仅含默认值（及环境变量覆盖）的配置，无需配置文件
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		// 默认值均为基础类型，不会解析失败
		panic(err)
	}
	return cfg
}

// LoadConfig 加载配置文件；未出现的键使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验互相依赖的字段
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "", "memory":
	case "postgres", "redis", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn 不能为空（store.type=%s）", c.Store.Type)
		}
	default:
		return fmt.Errorf("未知的 store.type: %q", c.Store.Type)
	}
	if c.Replay.MaxRecordSize < 0 {
		return fmt.Errorf("replay.max_record_size 不能为负数")
	}
	if c.API.Auth.Enable && c.API.Auth.JWTKey == "" {
		return fmt.Errorf("api.auth.jwt_key 不能为空（api.auth.enable=true）")
	}
	for _, d := range []struct{ key, val string }{
		{"api.auth.jwt_timeout", c.API.Auth.JWTTimeout},
		{"api.auth.jwt_max_refresh", c.API.Auth.JWTMaxRefresh},
		{"remote.timeout", c.Remote.Timeout},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("%s 无效: %w", d.key, err)
		}
	}
	return nil
}
