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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/jwt"

	"agritrace/internal/api/http/middleware"
	"agritrace/pkg/auth"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	jwtAuth    *jwt.HertzJWTMiddleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// SetJWT 启用 JWT 认证（未启用时退化为请求头身份注入，仅限联调）
func (r *Router) SetJWT(jwtAuth *jwt.HertzJWTMiddleware) {
	r.jwtAuth = jwtAuth
}

// Build 装配 Hertz 服务与全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append(opts, server.WithHostPorts(addr))
	h := server.Default(opts...)
	r.setupRoutes(h)
	return h
}

// setupRoutes 设置路由
func (r *Router) setupRoutes(h *server.Hertz) {
	h.Use(r.middleware.CORS())
	h.Use(r.middleware.RateLimit())
	h.Use(r.middleware.AccessLog())

	api := h.Group("/api")

	// 健康检查、指标与消费者溯源核验不要求认证
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/system/metrics", r.handler.SystemMetrics)
	api.GET("/ledger/verify/:id", r.handler.LedgerVerify)

	if r.jwtAuth != nil {
		api.POST("/auth/login", r.jwtAuth.LoginHandler)
		api.GET("/auth/refresh", r.jwtAuth.RefreshHandler)
		api.Use(r.jwtAuth.MiddlewareFunc())
		api.Use(middleware.ActorInjector())
	} else {
		api.Use(r.middleware.DevAuth())
	}

	// 批次管理
	batches := api.Group("/batches")
	{
		batches.POST("/", middleware.RequirePermission(auth.PermissionBatchCreate), r.handler.CreateBatch)
		batches.GET("/", middleware.RequirePermission(auth.PermissionBatchView), r.handler.ListBatches)
		batches.GET("/:id", middleware.RequirePermission(auth.PermissionBatchView), r.handler.GetBatch)
		batches.PUT("/:id/status", middleware.RequirePermission(auth.PermissionBatchUpdate), r.handler.UpdateBatchStatus)
		batches.DELETE("/:id", middleware.RequirePermission(auth.PermissionBatchDelete), r.handler.DeleteBatch)
		batches.POST("/:id/verify", middleware.RequirePermission(auth.PermissionVerifyStamp), r.handler.VerifyBatch)
		batches.GET("/:id/events", middleware.RequirePermission(auth.PermissionBatchView), r.handler.ListBatchEvents)
		batches.GET("/:id/reports", middleware.RequirePermission(auth.PermissionBatchView), r.handler.ListBatchReports)
	}

	// 持有权流转
	transfers := api.Group("/transfers")
	{
		transfers.POST("/", middleware.RequirePermission(auth.PermissionTransferCreate), r.handler.CreateTransfer)
		transfers.GET("/", middleware.RequirePermission(auth.PermissionBatchView), r.handler.ListTransfers)
	}

	// 质检报告
	reports := api.Group("/reports")
	{
		reports.POST("/", middleware.RequirePermission(auth.PermissionReportCreate), r.handler.CreateReport)
		reports.GET("/:id", middleware.RequirePermission(auth.PermissionBatchView), r.handler.GetReport)
		reports.PUT("/:id", middleware.RequirePermission(auth.PermissionReportUpdate), r.handler.UpdateReport)
		reports.DELETE("/:id", middleware.RequirePermission(auth.PermissionReportUpdate), r.handler.DeleteReport)
	}

	// 链上历史与同步
	ledger := api.Group("/ledger")
	{
		ledger.GET("/history/:id", middleware.RequirePermission(auth.PermissionBatchView), r.handler.LedgerHistory)
		ledger.POST("/sync", middleware.RequirePermission(auth.PermissionSyncRun), r.handler.LedgerSync)
	}

	// 分析与管理
	api.GET("/analytics/overview", middleware.RequirePermission(auth.PermissionAnalyticsView), r.handler.AnalyticsOverview)
	api.POST("/admin/cache/clear", middleware.RequirePermission(auth.PermissionCacheClear), r.handler.CacheClear)
}
