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

package syncd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agritrace/internal/app"
	"agritrace/internal/reconcile"
	"agritrace/pkg/config"
)

// App 对账进程：周期性把未锚定批次补登记到外部账本
type App struct {
	bootstrap  *app.Bootstrap
	engine     *reconcile.Engine
	interval   time.Duration
	batchLimit int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建对账应用（由 cmd/syncd 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil {
		return nil, fmt.Errorf("bootstrap 不能为空")
	}

	var cacheCfg config.CacheConfig
	var syncCfg config.SyncConfig
	if bootstrap.Config != nil {
		cacheCfg = bootstrap.Config.Storage.Cache
		syncCfg = bootstrap.Config.Sync
	}

	interval := 5 * time.Minute
	if syncCfg.Interval != "" {
		if d, err := time.ParseDuration(syncCfg.Interval); err == nil && d > 0 {
			interval = d
		}
	}
	batchLimit := syncCfg.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 100
	}

	engine := reconcile.NewEngine(bootstrap.Store, bootstrap.Ledger, bootstrap.Cache, cacheCfg, syncCfg, bootstrap.Logger)

	return &App{
		bootstrap:  bootstrap,
		engine:     engine,
		interval:   interval,
		batchLimit: batchLimit,
	}, nil
}

// Start 启动对账循环（立即跑一轮，之后按 interval 轮询）
func (a *App) Start() error {
	if !a.bootstrap.Ledger.Configured() {
		a.bootstrap.Logger.Warn("外部账本未配置，对账进程无事可做，仅保持存活")
	}
	a.bootstrap.Logger.Info("对账进程启动", "interval", a.interval.String(), "batch_limit", a.batchLimit)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go a.loop(ctx)
	return nil
}

// loop 对账主循环
func (a *App) loop(ctx context.Context) {
	defer a.wg.Done()

	a.runOnce(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

// runOnce 执行一轮批量同步并记录结果
func (a *App) runOnce(ctx context.Context) {
	if !a.bootstrap.Ledger.Configured() {
		return
	}
	summary, err := a.engine.SyncAll(ctx, a.batchLimit)
	if err != nil {
		a.bootstrap.Logger.Error("批量同步失败", "error", err)
		return
	}
	if summary.Total == 0 {
		a.bootstrap.Logger.Debug("没有待同步的批次")
		return
	}
	a.bootstrap.Logger.Info("批量同步完成",
		"total", summary.Total,
		"synced", summary.Synced,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
}

// Shutdown 停止对账循环并释放资源
func (a *App) Shutdown(ctx context.Context) error {
	a.bootstrap.Logger.Info("对账进程关闭")
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.bootstrap.Close()
	return nil
}
