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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/syncd 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SyncTotal, LedgerCallDuration, LedgerCallErrors,
		CacheRequests, CustodyEventTotal,
	)
}

// SyncTotal 批次同步结果总数（按结果）
var SyncTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agritrace_sync_total",
		Help: "批次链上同步结果总数",
	},
	[]string{"result"}, // synced | skipped | failed
)

// LedgerCallDuration 外部账本调用耗时（秒）
var LedgerCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agritrace_ledger_call_duration_seconds",
		Help:    "外部账本调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"op"}, // submit_batch | submit_transfer | submit_status | query
)

// LedgerCallErrors 外部账本调用失败总数
var LedgerCallErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agritrace_ledger_call_errors_total",
		Help: "外部账本调用失败总数",
	},
	[]string{"op"},
)

// CacheRequests 缓存请求总数（命中/未命中）
var CacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agritrace_cache_requests_total",
		Help: "缓存请求总数",
	},
	[]string{"kind", "result"}, // kind: analytics|verification, result: hit|miss
)

// CustodyEventTotal 流转事件总数（按类型）
var CustodyEventTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agritrace_custody_event_total",
		Help: "流转事件总数",
	},
	[]string{"type"}, // creation | transfer | pickup | delivery | inspection | sale
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
