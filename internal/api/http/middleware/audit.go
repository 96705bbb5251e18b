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

package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
)

// AuditMiddleware 归档访问审计：记录谁推送/拉取了哪个会话
type AuditMiddleware struct {
	auditStore AuditStore
}

// AuditStore 审计日志存储接口
type AuditStore interface {
	LogAccess(ctx context.Context, log AuditLog) error
}

// AuditLog 审计日志记录
type AuditLog struct {
	Subject    string
	Action     string
	SessionID  string
	Success    bool
	DurationMS int64
	CreatedAt  time.Time
}

// NewAuditMiddleware 创建审计中间件
func NewAuditMiddleware(auditStore AuditStore) *AuditMiddleware {
	return &AuditMiddleware{auditStore: auditStore}
}

// AuditAccess 记录 API 访问；未认证时 Subject 为 anonymous
func (a *AuditMiddleware) AuditAccess() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		// c 在请求结束后会被复用，先取出字段
		entry := AuditLog{
			Subject:    subjectOf(c),
			Action:     determineAction(string(c.Method()), string(c.Path())),
			SessionID:  extractSession(string(c.Path())),
			Success:    c.Response.StatusCode() < 400,
			DurationMS: time.Since(start).Milliseconds(),
			CreatedAt:  time.Now().UTC(),
		}
		_ = a.auditStore.LogAccess(ctx, entry)
	}
}

func subjectOf(c *app.RequestContext) string {
	if v, ok := c.Get(IdentityKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}

// determineAction 根据 HTTP 方法和路径确定操作类型
func determineAction(method string, path string) string {
	if !strings.HasPrefix(path, "/api/sessions") {
		return "unknown"
	}
	if strings.HasSuffix(path, "/verify") {
		return "verify_trace"
	}
	if extractSession(path) == "" {
		return "list_sessions"
	}
	switch method {
	case "GET":
		return "pull_trace"
	case "POST":
		return "push_trace"
	}
	return "unknown"
}

// extractSession 从 /api/sessions/:id[/verify] 提取会话 ID
func extractSession(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "sessions" {
		return parts[2]
	}
	return ""
}

// SlogAuditStore 将审计记录写入结构化日志
type SlogAuditStore struct {
	Logger *slog.Logger
}

func (s SlogAuditStore) LogAccess(ctx context.Context, e AuditLog) error {
	s.Logger.InfoContext(ctx, "audit",
		"subject", e.Subject,
		"action", e.Action,
		"session_id", e.SessionID,
		"success", e.Success,
		"duration_ms", e.DurationMS,
	)
	return nil
}
