package ledger

import (
	"context"

	"agritrace/internal/domain"
)

// Existence 链上批次存在性查询结果
type Existence struct {
	Exists    bool          `json:"exists"`
	Custodian string        `json:"custodian,omitempty"`
	Status    domain.Status `json:"status,omitempty"`
}

// History 链上持有链与状态历史
type History struct {
	Custodians []string        `json:"custodians"`
	Statuses   []domain.Status `json:"statuses"`
}

// Client 外部账本客户端。每次提交返回链上交易哈希；
// 调用方绝不在主存储事务内调用（先本地提交，后锚定）。
// 未配置时所有方法返回 ErrUnconfigured，Configured 返回 false。
type Client interface {
	// SubmitBatch 登记批次，返回交易哈希；链上已存在返回 ErrAlreadyAnchored
	SubmitBatch(ctx context.Context, b *domain.Batch) (string, error)
	// SubmitTransfer 登记一次持有权转移
	SubmitTransfer(ctx context.Context, batchID, fromParty, toParty string) (string, error)
	// SubmitStatus 登记一次状态变更
	SubmitStatus(ctx context.Context, batchID string, status domain.Status) (string, error)
	// QueryExistence 查询批次是否在链上登记
	QueryExistence(ctx context.Context, batchID string) (*Existence, error)
	// QueryHistory 查询链上持有链与状态历史
	QueryHistory(ctx context.Context, batchID string) (*History, error)
	// Configured 是否已配置外部账本
	Configured() bool
}
