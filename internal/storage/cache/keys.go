package cache

import (
	"fmt"
	"time"

	"agritrace/pkg/config"
	"agritrace/pkg/utils"
)

// 缓存键命名约定：<域>:<主体>:<参数>，通配删除依赖此前缀结构。

// AnalyticsKey 分析统计缓存键，按请求方与参数区分
func AnalyticsKey(actorID, params string) string {
	if params == "" {
		params = "all"
	}
	return fmt.Sprintf("analytics:%s:%s", actorID, params)
}

// VerificationKey 批次核验结果缓存键
func VerificationKey(batchID string) string {
	return fmt.Sprintf("verification:%s", batchID)
}

// AnalyticsPattern 匹配全部分析缓存
const AnalyticsPattern = "analytics:*"

// VerificationPattern 匹配全部核验缓存
const VerificationPattern = "verification:*"

// AnalyticsTTL 分析缓存存活时间
func AnalyticsTTL(cfg config.CacheConfig) time.Duration {
	return utils.ParseDuration(cfg.AnalyticsTTL, 5*time.Minute)
}

// VerificationTTL 核验缓存存活时间
func VerificationTTL(cfg config.CacheConfig) time.Duration {
	return utils.ParseDuration(cfg.VerificationTTL, 10*time.Minute)
}
