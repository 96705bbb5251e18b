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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
	"github.com/JackYoustra/TCATestRecording/pkg/secrets"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
	"github.com/JackYoustra/TCATestRecording/pkg/tracing"
)

const version = "tracereplay cli 0.1.0"

// configEnv 指向 YAML 配置文件；未设置时仅使用默认值与 TRACEREPLAY_* 环境变量
const configEnv = "TRACEREPLAY_CONFIG_FILE"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env 单次命令执行所需的配置与输出
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func (e *env) resolve(path string) string {
	dir := e.cfg.Recording.Dir
	if filepath.IsAbs(path) || dir == "" || dir == "." {
		return path
	}
	return filepath.Join(dir, path)
}

func (e *env) readerOptions() []tracelog.ReaderOption {
	if n := e.cfg.Replay.MaxRecordSize; n > 0 {
		return []tracelog.ReaderOption{tracelog.WithMaxRecordSize(n)}
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv(configEnv); path != "" {
		return config.LoadConfig(path)
	}
	cfg := config.Default()
	return cfg, cfg.Validate()
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	if err := secrets.ResolveConfig(context.Background(), cfg); err != nil {
		fmt.Fprintf(stderr, "解析 secret 失败: %v\n", err)
		return 1
	}
	var logger *log.Logger
	if cfg.Log.File != "" {
		logger, err = log.NewLogger(cfg.Log.Logger())
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	} else {
		logger = log.NewWriterLogger(stderr, cfg.Log.Logger())
	}
	defer logger.Close()

	if t := cfg.Monitoring.Tracing; t.Enable {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    t.ServiceName,
			ExportEndpoint: t.ExportEndpoint,
			Insecure:       t.Insecure,
		})
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	e := &env{cfg: cfg, logger: logger.Logger, stdout: stdout, stderr: stderr}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version)
	case "config":
		return e.runConfig()
	case "inspect":
		if len(rest) < 1 {
			fmt.Fprintf(stderr, "Usage: tracereplay inspect <log>\n")
			return 1
		}
		return e.runInspect(rest[0])
	case "verify":
		if len(rest) < 1 {
			fmt.Fprintf(stderr, "Usage: tracereplay verify <log>\n")
			return 1
		}
		return e.runVerify(rest[0])
	case "metrics":
		if len(rest) < 1 {
			fmt.Fprintf(stderr, "Usage: tracereplay metrics <log>\n")
			return 1
		}
		return e.runMetrics(rest[0])
	case "render":
		if len(rest) < 1 {
			fmt.Fprintf(stderr, "Usage: tracereplay render <log> [package] [test_func] [transition]\n")
			return 1
		}
		return e.runRender(rest)
	case "push":
		if len(rest) < 2 {
			fmt.Fprintf(stderr, "Usage: tracereplay push <log> <session_id>\n")
			return 1
		}
		return e.withStore(func(ctx context.Context, s tracestore.Store) int {
			return e.pushTrace(ctx, s, rest[0], rest[1])
		})
	case "pull":
		if len(rest) < 2 {
			fmt.Fprintf(stderr, "Usage: tracereplay pull <session_id> <out>\n")
			return 1
		}
		return e.withStore(func(ctx context.Context, s tracestore.Store) int {
			return e.pullTrace(ctx, s, rest[0], rest[1])
		})
	case "sessions":
		return e.withStore(e.listSessions)
	case "remote":
		return e.runRemote(rest)
	default:
		printUsage(stderr)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tracereplay <command> [args]")
	fmt.Fprintln(w, "  version                   - 显示版本")
	fmt.Fprintln(w, "  config                    - 显示配置概要")
	fmt.Fprintln(w, "  inspect <log>             - 输出 trace 时间线（初始状态、Quantum、依赖值）")
	fmt.Fprintln(w, "  verify <log>              - 校验 trace 是否完整可解码，损坏时退出码 1")
	fmt.Fprintln(w, "  metrics <log>             - 解码 trace 并输出 Prometheus 指标")
	fmt.Fprintln(w, "  render <log> [pkg] [func] [transition] - 生成回放该 trace 的 Go 测试源码")
	fmt.Fprintln(w, "  push <log> <session_id>   - 将 trace 导入归档存储")
	fmt.Fprintln(w, "  pull <session_id> <out>   - 从归档存储导出 trace")
	fmt.Fprintln(w, "  sessions                  - 列出归档中的会话")
	fmt.Fprintln(w, "  remote <push|pull|sessions|verify> - 通过 HTTP 访问远端归档服务")
	fmt.Fprintf(w, "配置文件通过环境变量 %s 指定\n", configEnv)
}

func (e *env) runConfig() int {
	c := e.cfg
	fmt.Fprintf(e.stdout, "recording.dir=%s\n", c.Recording.Dir)
	fmt.Fprintf(e.stdout, "recording.buffer_size=%d\n", c.Recording.BufferSize)
	fmt.Fprintf(e.stdout, "recording.flush_each_record=%t\n", c.Recording.FlushEachRecord)
	fmt.Fprintf(e.stdout, "recording.sync_on_close=%t\n", c.Recording.SyncOnClose)
	fmt.Fprintf(e.stdout, "replay.max_record_size=%d\n", c.Replay.MaxRecordSize)
	fmt.Fprintf(e.stdout, "store.type=%s\n", c.Store.Type)
	fmt.Fprintf(e.stdout, "log.level=%s\n", c.Log.Level)
	fmt.Fprintf(e.stdout, "monitoring.tracing.enable=%t\n", c.Monitoring.Tracing.Enable)
	return 0
}
