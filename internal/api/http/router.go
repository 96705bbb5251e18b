package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"github.com/JackYoustra/TCATestRecording/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwt        *jwt.HertzJWTMiddleware
	audit      *middleware.AuditMiddleware
	rps        float64
	burst      int
	global     []app.HandlerFunc
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// SetJWT 启用 JWT：/api/sessions 下的接口需携带 token
func (r *Router) SetJWT(mw *jwt.HertzJWTMiddleware) { r.jwt = mw }

// SetAudit 启用访问审计
func (r *Router) SetAudit(a *middleware.AuditMiddleware) { r.audit = a }

// SetRateLimit 导入接口限流
func (r *Router) SetRateLimit(rps float64, burst int) {
	r.rps, r.burst = rps, burst
}

// Use 追加全局中间件，须在 Build 之前调用
func (r *Router) Use(mws ...app.HandlerFunc) {
	r.global = append(r.global, mws...)
}

// Build 创建 Hertz 服务并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	r.Register(h)
	return h
}

// Register 注册路由
func (r *Router) Register(h *server.Hertz) {
	h.Use(r.global...)
	h.Use(r.middleware.AccessLog(), r.middleware.CORS())

	h.GET("/api/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	var guard []app.HandlerFunc
	if r.jwt != nil {
		h.POST("/api/auth/login", r.jwt.LoginHandler)
		h.POST("/api/auth/refresh", r.jwt.RefreshHandler)
		guard = append(guard, r.jwt.MiddlewareFunc())
	}
	if r.audit != nil {
		guard = append(guard, r.audit.AuditAccess())
	}

	sessions := h.Group("/api/sessions", guard...)
	{
		sessions.GET("", r.handler.ListSessions)
		sessions.GET("/:id", r.handler.ExportSession)
		sessions.POST("/:id", r.middleware.RateLimit(r.rps, r.burst), r.handler.ImportSession)
		sessions.GET("/:id/verify", r.handler.VerifySession)
	}
}
