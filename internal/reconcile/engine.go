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

package reconcile

import (
	"context"
	"errors"
	"sync"

	"agritrace/internal/domain"
	"agritrace/internal/ledger"
	"agritrace/internal/storage/cache"
	"agritrace/internal/store"
	"agritrace/pkg/config"
	"agritrace/pkg/log"
	"agritrace/pkg/metrics"
)

// Engine 对账引擎：把本地账本与外部账本拉齐。同步是幂等的，
// 重复执行已同步的批次只会得到 skipped。
type Engine struct {
	store       store.Store
	ledger      ledger.Client
	cache       cache.Store
	cacheCfg    config.CacheConfig
	concurrency int
	logger      *log.Logger
}

// NewEngine 创建对账引擎
func NewEngine(st store.Store, lc ledger.Client, c cache.Store, cacheCfg config.CacheConfig, syncCfg config.SyncConfig, logger *log.Logger) *Engine {
	concurrency := syncCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Engine{
		store:       st,
		ledger:      lc,
		cache:       c,
		cacheCfg:    cacheCfg,
		concurrency: concurrency,
		logger:      logger.With("component", "reconcile"),
	}
}

// Outcome 单批次同步结果
type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// SyncResult 单批次同步结果明细
type SyncResult struct {
	BatchID string  `json:"batch_id"`
	Outcome Outcome `json:"outcome"`
	TxHash  string  `json:"tx_hash,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// SyncSummary 批量同步汇总
type SyncSummary struct {
	Total   int          `json:"total"`
	Synced  int          `json:"synced"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
	Results []SyncResult `json:"results"`
}

// SyncBatch 把单个批次同步到外部账本：链上缺失则登记批次并按事件流
// 顺序重放转移与状态变更，最后写入锚定哈希。已在链上的批次跳过。
func (e *Engine) SyncBatch(ctx context.Context, batchID string) SyncResult {
	res := e.syncBatch(ctx, batchID)
	metrics.SyncTotal.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (e *Engine) syncBatch(ctx context.Context, batchID string) SyncResult {
	if !e.ledger.Configured() {
		return SyncResult{BatchID: batchID, Outcome: OutcomeFailed, Reason: "外部账本未配置"}
	}
	b, err := e.store.GetBatch(ctx, batchID)
	if err != nil {
		return SyncResult{BatchID: batchID, Outcome: OutcomeFailed, Reason: err.Error()}
	}

	ex, err := e.ledger.QueryExistence(ctx, batchID)
	if err != nil {
		return SyncResult{BatchID: batchID, Outcome: OutcomeFailed, Reason: err.Error()}
	}
	if ex.Exists {
		// 链上已有登记；本地缺锚定哈希说明上次同步写回失败，这里无法
		// 还原原交易哈希，保持 skipped 留给人工核对
		return SyncResult{BatchID: batchID, Outcome: OutcomeSkipped, Reason: "链上已登记"}
	}

	txHash, err := e.ledger.SubmitBatch(ctx, b)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyAnchored) {
			return SyncResult{BatchID: batchID, Outcome: OutcomeSkipped, Reason: "链上已登记"}
		}
		return SyncResult{BatchID: batchID, Outcome: OutcomeFailed, Reason: err.Error()}
	}

	// 重放事件流：登记只含创建时刻的快照，转移与状态要按序补上
	events, err := e.store.ListEvents(ctx, batchID)
	if err != nil {
		return SyncResult{BatchID: batchID, Outcome: OutcomeFailed, Reason: err.Error()}
	}
	for _, ev := range events {
		var txRef string
		var submitErr error
		switch ev.Type {
		case domain.EventTransfer:
			txRef, submitErr = e.ledger.SubmitTransfer(ctx, batchID, ev.FromParty, ev.ToParty)
		case domain.EventPickup:
			txRef, submitErr = e.ledger.SubmitStatus(ctx, batchID, domain.StatusInTransit)
		case domain.EventDelivery:
			txRef, submitErr = e.ledger.SubmitStatus(ctx, batchID, domain.StatusDelivered)
		case domain.EventSale:
			txRef, submitErr = e.ledger.SubmitStatus(ctx, batchID, domain.StatusSold)
		default:
			continue
		}
		if submitErr != nil {
			// 批次本身已登记：写回锚定，剩余事件下轮对账补
			e.logger.Warn("事件重放失败", "batch_id", batchID, "event_id", ev.EventID, "error", submitErr)
			break
		}
		if ev.LedgerTxRef == "" {
			if err := e.store.SetEventLedgerRef(ctx, ev.EventID, txRef); err != nil {
				e.logger.Warn("补写事件链上引用失败", "event_id", ev.EventID, "error", err)
			}
		}
	}

	if err := e.store.SetAnchor(ctx, batchID, txHash); err != nil {
		return SyncResult{BatchID: batchID, Outcome: OutcomeFailed, Reason: err.Error()}
	}
	e.invalidateVerification(ctx, batchID)
	e.logger.Info("批次已同步上链", "batch_id", batchID, "tx_hash", txHash)
	return SyncResult{BatchID: batchID, Outcome: OutcomeSynced, TxHash: txHash}
}

// SyncAll 有界并发同步所有未锚定批次，单批次失败不影响其他批次
func (e *Engine) SyncAll(ctx context.Context, limit int) (*SyncSummary, error) {
	batches, err := e.store.ListUnanchored(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SyncResult, len(batches))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, batchID string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.SyncBatch(ctx, batchID)
		}(i, b.BatchID)
	}
	wg.Wait()

	summary := &SyncSummary{Total: len(results), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSynced:
			summary.Synced++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		}
	}
	e.logger.Info("批量同步完成", "total", summary.Total, "synced", summary.Synced,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// Verification 批次核验结果
type Verification struct {
	BatchID   string `json:"batch_id"`
	Verified  bool   `json:"verified"`
	OnLedger  bool   `json:"on_ledger"`
	TxHash    string `json:"tx_hash,omitempty"`
	Custodian string `json:"custodian,omitempty"`
	Cached    bool   `json:"cached"`
	StoreOnly bool   `json:"store_only,omitempty"` // 外部账本未配置
}

// VerifyIntegrity 核验批次：已锚定则查询链上存在性，verified 取
// 锚定与存在的合取；未锚定不触发任何链上调用。结果带 TTL 缓存。
func (e *Engine) VerifyIntegrity(ctx context.Context, batchID string) (*Verification, error) {
	key := cache.VerificationKey(batchID)
	var cached Verification
	if err := e.cache.Get(ctx, key, &cached); err == nil {
		metrics.CacheRequests.WithLabelValues("verification", "hit").Inc()
		cached.Cached = true
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		e.logger.Warn("读取核验缓存失败", "key", key, "error", err)
	}
	metrics.CacheRequests.WithLabelValues("verification", "miss").Inc()

	b, err := e.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	out := &Verification{BatchID: batchID, TxHash: b.LedgerTxHash}
	switch {
	case !b.Anchored():
		// 未锚定即未核验，无须打扰外部账本
	case !e.ledger.Configured():
		out.StoreOnly = true
	default:
		ex, err := e.ledger.QueryExistence(ctx, batchID)
		if err != nil {
			// 账本暂不可用降级为未核验，不写缓存以便下次尽快重试
			e.logger.Warn("链上存在性查询失败", "batch_id", batchID, "error", err)
			return out, nil
		}
		out.OnLedger = ex.Exists
		out.Verified = ex.Exists
		out.Custodian = ex.Custodian
	}

	if err := e.cache.Set(ctx, key, out, cache.VerificationTTL(e.cacheCfg)); err != nil {
		e.logger.Warn("写入核验缓存失败", "key", key, "error", err)
	}
	return out, nil
}

// History 链上持有链与状态历史查询（直通外部账本）
func (e *Engine) History(ctx context.Context, batchID string) (*ledger.History, error) {
	if !e.ledger.Configured() {
		return nil, domain.ErrUnconfigured
	}
	return e.ledger.QueryHistory(ctx, batchID)
}

// invalidateVerification 同步成功后让核验缓存失效
func (e *Engine) invalidateVerification(ctx context.Context, batchID string) {
	if err := e.cache.Delete(ctx, cache.VerificationKey(batchID)); err != nil {
		e.logger.Warn("清除核验缓存失败", "batch_id", batchID, "error", err)
	}
}
