package ledger

import (
	"context"

	"agritrace/internal/domain"
)

// Unconfigured 未配置外部账本时的客户端：服务以 store-only 模式运行，
// 所有链上操作显式失败而不是悄悄跳过。
type Unconfigured struct{}

func (Unconfigured) SubmitBatch(ctx context.Context, b *domain.Batch) (string, error) {
	return "", domain.ErrUnconfigured
}

func (Unconfigured) SubmitTransfer(ctx context.Context, batchID, fromParty, toParty string) (string, error) {
	return "", domain.ErrUnconfigured
}

func (Unconfigured) SubmitStatus(ctx context.Context, batchID string, status domain.Status) (string, error) {
	return "", domain.ErrUnconfigured
}

func (Unconfigured) QueryExistence(ctx context.Context, batchID string) (*Existence, error) {
	return nil, domain.ErrUnconfigured
}

func (Unconfigured) QueryHistory(ctx context.Context, batchID string) (*History, error) {
	return nil, domain.ErrUnconfigured
}

func (Unconfigured) Configured() bool { return false }

var _ Client = Unconfigured{}
