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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/JackYoustra/TCATestRecording/internal/api/http"
	"github.com/JackYoustra/TCATestRecording/internal/api/http/middleware"
	"github.com/JackYoustra/TCATestRecording/internal/app"
	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
)

// HealthService gRPC 健康检查中注册的服务名
const HealthService = "tracereplay.archive"

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App trace 归档服务
type App struct {
	config       *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *grpcRun
	otelProvider otelProviderShutdown
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
}

// Addr 实际监听地址
func (g *grpcRun) Addr() string { return g.lis.Addr().String() }

func (g *grpcRun) GracefulStop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}

// NewApp 创建归档服务：路由、JWT、限流、审计以及可选的 gRPC 健康检查
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	logger := bootstrap.Logger.Logger

	handler := http.NewHandler(bootstrap.Store, logger)
	handler.SetMaxRecordSize(cfg.Replay.MaxRecordSize)
	router := http.NewRouter(handler, middleware.NewMiddleware(logger))
	router.SetRateLimit(cfg.API.RateLimit.RPS, cfg.API.RateLimit.Burst)
	router.SetAudit(middleware.NewAuditMiddleware(middleware.SlogAuditStore{Logger: logger}))

	if cfg.API.Auth.Enable {
		timeout := config.ParseDuration(cfg.API.Auth.JWTTimeout, time.Hour)
		maxRefresh := config.ParseDuration(cfg.API.Auth.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(cfg.API.Auth.JWTKey), timeout, maxRefresh, cfg.API.Auth.APIKeys)
		if err != nil {
			// 认证开启却无法初始化时不降级为匿名访问
			return nil, fmt.Errorf("JWT 初始化失败: %w", err)
		}
		router.SetJWT(jwtAuth)
		logger.Info("JWT 认证已启用", "api_keys", len(cfg.API.Auth.APIKeys))
	}

	appObj := &App{config: bootstrap, router: router}
	if cfg.API.GRPCAddr != "" {
		gs, err := startGRPC(cfg.API.GRPCAddr)
		if err != nil {
			logger.Warn("gRPC 服务启动失败", "error", err)
		} else {
			appObj.grpcServer = gs
			logger.Info("gRPC 健康检查已启动", "addr", gs.Addr())
		}
	}
	return appObj, nil
}

// Run 阻塞运行 HTTP 服务
func (a *App) Run(addr string) error {
	cfg := a.config.Config
	a.config.Logger.Info("归档服务启动", "addr", addr)

	// Hertz 自身日志走 slog 扩展，与全局日志配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	a.hertz = a.build(addr)
	return a.hertz.Run()
}

// build 按需启用链路追踪（OpenTelemetry）
func (a *App) build(addr string) *server.Hertz {
	t := a.config.Config.Monitoring.Tracing
	if !t.Enable {
		return a.router.Build(addr)
	}
	serviceName := t.ServiceName
	if serviceName == "" {
		serviceName = "tracereplay-archive"
	}
	endpoint := t.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		a.config.Logger.Warn("链路追踪未配置 export_endpoint，已跳过")
		return a.router.Build(addr)
	}
	opts := []provider.Option{
		provider.WithServiceName(serviceName),
		provider.WithExportEndpoint(endpoint),
	}
	if t.Insecure {
		opts = append(opts, provider.WithInsecure())
	}
	a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
	tracerOpt, tcfg := hertztracing.NewServerTracer()
	a.router.Use(hertztracing.ServerMiddleware(tcfg))
	a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", endpoint)
	return a.router.Build(addr, tracerOpt)
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.config.Store.Close()
}

// startGRPC 启动只提供 grpc.health.v1 的 gRPC 服务
func startGRPC(addr string) (*grpcRun, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, health: hs, lis: lis}, nil
}
