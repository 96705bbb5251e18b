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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/JackYoustra/TCATestRecording/internal/app"
	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
	"github.com/JackYoustra/TCATestRecording/pkg/config"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
)

func testBootstrap(cfg *config.Config) *app.Bootstrap {
	return &app.Bootstrap{
		Config: cfg,
		Logger: &log.Logger{Logger: log.Discard()},
		Store:  tracestore.NewMemoryStore(),
	}
}

func TestNewApp_AuthWithoutKeys(t *testing.T) {
	cfg := config.Default()
	cfg.API.Auth.Enable = true
	cfg.API.Auth.JWTKey = "secret"
	_, err := NewApp(testBootstrap(cfg))
	assert.Error(t, err)
}

func TestNewApp_GRPCHealth(t *testing.T) {
	cfg := config.Default()
	cfg.API.GRPCAddr = "127.0.0.1:0"
	a, err := NewApp(testBootstrap(cfg))
	require.NoError(t, err)
	require.NotNil(t, a.grpcServer)
	defer func() { _ = a.Shutdown(context.Background()) }()

	conn, err := grpc.NewClient(a.grpcServer.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestShutdown_NotRunning(t *testing.T) {
	a, err := NewApp(testBootstrap(config.Default()))
	require.NoError(t, err)
	assert.NoError(t, a.Shutdown(context.Background()))
}
