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

package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/JackYoustra/TCATestRecording/internal/tracestore"
	pkgerrors "github.com/JackYoustra/TCATestRecording/pkg/errors"
	"github.com/JackYoustra/TCATestRecording/pkg/log"
	"github.com/JackYoustra/TCATestRecording/pkg/metrics"
	"github.com/JackYoustra/TCATestRecording/pkg/tracelog"
)

// contentTypeNDJSON trace 导入导出使用的内容类型
const contentTypeNDJSON = "application/x-ndjson"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Handler 归档服务 HTTP 处理器
type Handler struct {
	store     tracestore.Store
	logger    *slog.Logger
	readerOpt []tracelog.ReaderOption
	started   time.Time
}

// NewHandler 创建处理器；logger 为 nil 时丢弃日志
func NewHandler(store tracestore.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Handler{store: store, logger: logger, started: time.Now()}
}

// SetMaxRecordSize 导入时单条记录的大小上限
func (h *Handler) SetMaxRecordSize(n int) {
	if n > 0 {
		h.readerOpt = []tracelog.ReaderOption{tracelog.WithMaxRecordSize(n)}
	}
}

func observe(op string, code int) {
	metrics.ArchiveRequests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

func (h *Handler) fail(c *app.RequestContext, op string, code int, msg string) {
	observe(op, code)
	c.JSON(code, utils.H{"error": msg})
}

func (h *Handler) sessionID(c *app.RequestContext, op string) (string, bool) {
	id := c.Param("id")
	if !sessionIDPattern.MatchString(id) {
		h.fail(c, op, consts.StatusBadRequest, "invalid session id")
		return "", false
	}
	return id, true
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	status := "ok"
	code := consts.StatusOK
	if h.store == nil {
		status, code = "no store", consts.StatusServiceUnavailable
	}
	c.JSON(code, utils.H{
		"status": status,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// ListSessions 列出归档会话
func (h *Handler) ListSessions(ctx context.Context, c *app.RequestContext) {
	const op = "list"
	sessions, err := h.store.ListSessions(ctx)
	if err != nil {
		h.logger.Error("列出会话失败", "error", err)
		h.fail(c, op, consts.StatusInternalServerError, "failed to list sessions")
		return
	}
	items := make([]utils.H, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, utils.H{
			"id":         s.ID,
			"records":    s.Records,
			"updated_at": s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	observe(op, consts.StatusOK)
	c.JSON(consts.StatusOK, utils.H{"sessions": items, "total": len(items)})
}

// ExportSession 校验哈希链后以 NDJSON 返回会话
func (h *Handler) ExportSession(ctx context.Context, c *app.RequestContext) {
	const op = "export"
	id, ok := h.sessionID(c, op)
	if !ok {
		return
	}
	var buf bytes.Buffer
	n, err := tracestore.Export(ctx, h.store, id, &buf)
	switch {
	case err == nil:
	case errors.Is(err, pkgerrors.ErrNotFound):
		h.fail(c, op, consts.StatusNotFound, "session not found")
		return
	case errors.Is(err, tracestore.ErrBrokenChain):
		h.logger.Warn("会话哈希链校验失败", "session_id", id, "error", err)
		h.fail(c, op, consts.StatusConflict, "hash chain broken")
		return
	default:
		h.logger.Error("导出会话失败", "session_id", id, "error", err)
		h.fail(c, op, consts.StatusInternalServerError, "failed to export session")
		return
	}
	metrics.ArchiveRecords.WithLabelValues("export").Add(float64(n))
	observe(op, consts.StatusOK)
	c.Data(consts.StatusOK, contentTypeNDJSON, buf.Bytes())
}

// ImportSession 将请求体中的 NDJSON trace 写入新会话
func (h *Handler) ImportSession(ctx context.Context, c *app.RequestContext) {
	const op = "import"
	id, ok := h.sessionID(c, op)
	if !ok {
		return
	}
	body := c.Request.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		h.fail(c, op, consts.StatusBadRequest, "empty trace")
		return
	}
	n, err := tracestore.Import(ctx, h.store, id, bytes.NewReader(body), h.readerOpt...)
	switch {
	case err == nil:
	case errors.Is(err, tracelog.ErrMalformedLog):
		h.fail(c, op, consts.StatusBadRequest, err.Error())
		return
	case errors.Is(err, tracestore.ErrSeqMismatch):
		// 已存在的会话或 seq 不连续
		h.fail(c, op, consts.StatusConflict, err.Error())
		return
	default:
		h.logger.Error("导入会话失败", "session_id", id, "imported", n, "error", err)
		h.fail(c, op, consts.StatusInternalServerError, "failed to import session")
		return
	}
	metrics.ArchiveRecords.WithLabelValues("import").Add(float64(n))
	h.logger.Info("会话已导入", "session_id", id, "records", n)
	observe(op, consts.StatusCreated)
	c.JSON(consts.StatusCreated, utils.H{"session_id": id, "records": n})
}

// VerifySession 校验会话哈希链
func (h *Handler) VerifySession(ctx context.Context, c *app.RequestContext) {
	const op = "verify"
	id, ok := h.sessionID(c, op)
	if !ok {
		return
	}
	entries, err := h.store.ListRecords(ctx, id)
	if err != nil {
		h.logger.Error("读取会话失败", "session_id", id, "error", err)
		h.fail(c, op, consts.StatusInternalServerError, "failed to read session")
		return
	}
	if len(entries) == 0 {
		h.fail(c, op, consts.StatusNotFound, "session not found")
		return
	}
	resp := utils.H{"session_id": id, "records": len(entries), "valid": true}
	if err := tracestore.VerifyChain(entries); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
	} else {
		resp["head"] = entries[len(entries)-1].Hash
	}
	observe(op, consts.StatusOK)
	c.JSON(consts.StatusOK, resp)
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
