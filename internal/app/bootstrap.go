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

package app

import (
	"context"
	"fmt"

	"agritrace/internal/ledger"
	"agritrace/internal/storage/cache"
	"agritrace/internal/store"
	"agritrace/pkg/config"
	"agritrace/pkg/log"
)

// Bootstrap 统一初始化：供 api 与 syncd 复用，避免在 cmd 内装配业务
type Bootstrap struct {
	Config *config.Config
	Logger *log.Logger
	Store  store.Store
	Cache  cache.Store
	Ledger ledger.Client
}

// NewBootstrap 根据配置创建 Bootstrap（主存储/缓存/外部账本）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var storeCfg config.StoreConfig
	var cacheCfg config.CacheConfig
	var ledgerCfg config.LedgerConfig
	if cfg != nil {
		storeCfg = cfg.Storage.Store
		cacheCfg = cfg.Storage.Cache
		ledgerCfg = cfg.Ledger
	}

	st, err := store.NewStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化主存储失败: %w", err)
	}

	c, err := cache.NewCache(cacheCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	lc, err := ledger.NewClient(ledgerCfg)
	if err != nil {
		st.Close()
		_ = c.Close()
		return nil, fmt.Errorf("初始化外部账本客户端失败: %w", err)
	}
	if !lc.Configured() {
		logger.Warn("外部账本未配置，服务以 store-only 模式运行")
	}

	return &Bootstrap{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Cache:  c,
		Ledger: lc,
	}, nil
}

// Close 释放 Bootstrap 持有的连接
func (b *Bootstrap) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
	if b.Cache != nil {
		_ = b.Cache.Close()
	}
}
