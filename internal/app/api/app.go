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
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"agritrace/internal/api/http"
	"agritrace/internal/api/http/middleware"
	"agritrace/internal/app"
	"agritrace/internal/reconcile"
	"agritrace/internal/service"
	"agritrace/pkg/config"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与业务服务）
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil {
		return nil, fmt.Errorf("bootstrap 不能为空")
	}

	var cacheCfg config.CacheConfig
	var syncCfg config.SyncConfig
	rps := 0
	if bootstrap.Config != nil {
		cacheCfg = bootstrap.Config.Storage.Cache
		syncCfg = bootstrap.Config.Sync
		if bootstrap.Config.API.Middleware.RateLimit {
			rps = bootstrap.Config.API.Middleware.RateLimitRPS
		}
	}

	batchSvc := service.NewBatchService(bootstrap.Store, bootstrap.Ledger, bootstrap.Cache, cacheCfg, bootstrap.Logger)
	inspectionSvc := service.NewInspectionService(bootstrap.Store, bootstrap.Logger)
	analyticsSvc := service.NewAnalyticsService(bootstrap.Store, bootstrap.Cache, cacheCfg, bootstrap.Logger)
	reconciler := reconcile.NewEngine(bootstrap.Store, bootstrap.Ledger, bootstrap.Cache, cacheCfg, syncCfg, bootstrap.Logger)

	handler := http.NewHandler(batchSvc, inspectionSvc, analyticsSvc, reconciler, bootstrap.Logger)
	mw := middleware.NewMiddleware(bootstrap.Logger, rps)
	router := http.NewRouter(handler, mw)

	if bootstrap.Config != nil && bootstrap.Config.API.Middleware.Auth && bootstrap.Config.API.Middleware.JWTKey != "" {
		timeout := parseDuration(bootstrap.Config.API.Middleware.JWTTimeout, time.Hour)
		maxRefresh := parseDuration(bootstrap.Config.API.Middleware.JWTMaxRefresh, time.Hour)
		jwtAuth, err := middleware.NewJWTAuth([]byte(bootstrap.Config.API.Middleware.JWTKey), timeout, maxRefresh)
		if err != nil {
			bootstrap.Logger.Warn("JWT 初始化失败，将跳过认证", "error", err)
		} else {
			router.SetJWT(jwtAuth)
			bootstrap.Logger.Info("JWT 认证已启用")
		}
	}

	return &App{
		bootstrap: bootstrap,
		router:    router,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if a.bootstrap.Config != nil && a.bootstrap.Config.Log.File != "" {
		f, err := os.OpenFile(a.bootstrap.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	if a.bootstrap.Config != nil && a.bootstrap.Config.Log.Level != "" {
		switch a.bootstrap.Config.Log.Level {
		case "debug":
			levelVar.Set(slog.LevelDebug)
		case "warn":
			levelVar.Set(slog.LevelWarn)
		case "error":
			levelVar.Set(slog.LevelError)
		default:
			levelVar.Set(slog.LevelInfo)
		}
	} else {
		levelVar.Set(slog.LevelInfo)
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if a.bootstrap.Config != nil && a.bootstrap.Config.Monitoring.Tracing.Enable {
		serviceName := a.bootstrap.Config.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "agritrace-api"
		}
		exportEndpoint := a.bootstrap.Config.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.bootstrap.Config.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			p := provider.NewOpenTelemetryProvider(opts...)
			a.otelProvider = p
			tracerOpt, cfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(cfg))
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	a.bootstrap.Close()
	return nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
