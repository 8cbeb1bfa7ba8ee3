package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss 缓存未命中（不存在或已过期）
var ErrCacheMiss = errors.New("缓存未命中")

// Store 缓存存储接口
type Store interface {
	// Set 设置缓存
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存；未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// DeletePattern 按通配模式批量删除（如 analytics:*），返回删除条数
	DeletePattern(ctx context.Context, pattern string) (int, error)
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清除所有缓存
	Clear(ctx context.Context) error
	// Close 关闭缓存连接
	Close() error
}
