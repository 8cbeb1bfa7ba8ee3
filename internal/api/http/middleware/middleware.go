package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"agritrace/pkg/auth"
	"agritrace/pkg/log"
)

// Middleware 中间件管理器
type Middleware struct {
	logger  *log.Logger
	limiter *rate.Limiter
}

// NewMiddleware 创建新的中间件管理器
func NewMiddleware(logger *log.Logger, rps int) *Middleware {
	if rps <= 0 {
		rps = 100
	}
	return &Middleware{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(rps), rps*2),
	}
}

// CORS 跨域响应头
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-ID, X-Actor-Role")
		if string(c.Method()) == "OPTIONS" {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

// RateLimit 进程级限流，超出返回 429
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.limiter.Allow() {
			c.JSON(consts.StatusTooManyRequests, map[string]interface{}{"error": "请求过于频繁"})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// AccessLog 访问日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		m.logger.Info("http request",
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"actor", auth.GetActorID(ctx),
		)
	}
}

// DevAuth 未启用 JWT 时的开发态身份注入：从请求头读取参与方身份。
// 生产部署必须配置 JWT，此中间件仅作本地联调兜底。
func (m *Middleware) DevAuth() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		actor := auth.Actor{
			ID:   string(c.GetHeader("X-Actor-ID")),
			Role: auth.Role(string(c.GetHeader("X-Actor-Role"))),
		}
		if actor.Role == "" || !auth.ValidRole(actor.Role) {
			actor.Role = auth.RoleConsumer
		}
		c.Next(auth.WithActor(ctx, actor))
	}
}
