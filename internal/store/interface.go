package store

import (
	"context"

	"agritrace/internal/domain"
)

// BatchFilter 批次列表过滤条件
type BatchFilter struct {
	FarmerID string        `json:"farmer_id"`
	Status   domain.Status `json:"status"`
	CropType string        `json:"crop_type"` // 模糊匹配
}

// EventFilter 流转事件列表过滤条件
type EventFilter struct {
	BatchID string           `json:"batch_id"`
	Party   string           `json:"party"` // 匹配发起方或接收方
	Type    domain.EventType `json:"type"`
}

// Pagination 分页参数
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// TransferFunc 在批次行锁内执行的转移决策：输入当前批次与有序事件流，
// 返回要追加的事件。返回错误则整个事务回滚。
type TransferFunc func(b *domain.Batch, events []*domain.TransferEvent) (*domain.TransferEvent, error)

// StatusFunc 在批次行锁内执行的状态决策：返回目标状态与要追加的事件。
type StatusFunc func(b *domain.Batch, events []*domain.TransferEvent) (domain.Status, *domain.TransferEvent, error)

// Store 账本主存储接口：批次、流转事件、质检报告的持久化。
// 所有涉及持有权的检查-写入必须在单个事务内完成（见 TransferCustody /
// UpdateStatusLocked），以避免两个并发请求读到同一"当前持有人"后双双成功。
type Store interface {
	// CreateBatch 创建批次；批次号冲突返回 ErrDuplicateResource
	CreateBatch(ctx context.Context, b *domain.Batch) error
	// GetBatch 按批次号获取；不存在返回 ErrNotFound
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	// UpdateBatch 按更新命令修改允许的字段
	UpdateBatch(ctx context.Context, batchID string, upd domain.BatchUpdate) (*domain.Batch, error)
	// DeleteBatch 删除批次并级联删除其事件与报告（仅管理员路径调用）
	DeleteBatch(ctx context.Context, batchID string) error
	// ListBatches 过滤分页列出批次，返回总数
	ListBatches(ctx context.Context, filter BatchFilter, page Pagination) ([]*domain.Batch, int64, error)
	// ListUnanchored 列出尚未锚定到外部账本的批次
	ListUnanchored(ctx context.Context, limit int) ([]*domain.Batch, error)
	// SetAnchor 写入锚定哈希（确认提交后才调用）
	SetAnchor(ctx context.Context, batchID, txHash string) error
	// StampVerification 写入核验盖章元数据
	StampVerification(ctx context.Context, batchID string, v domain.VerificationStamp) error
	// CountByStatus 各状态批次数（分析用）
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)

	// TransferCustody 行锁内执行 fn 并追加其返回的事件
	TransferCustody(ctx context.Context, batchID string, fn TransferFunc) (*domain.TransferEvent, error)
	// UpdateStatusLocked 行锁内执行 fn，更新状态并追加事件
	UpdateStatusLocked(ctx context.Context, batchID string, fn StatusFunc) (*domain.Batch, error)

	// AppendEvent 追加一条流转事件（非持有权路径，如质检事件）
	AppendEvent(ctx context.Context, e *domain.TransferEvent) error
	// ListEvents 按发生时间升序列出批次的全部事件
	ListEvents(ctx context.Context, batchID string) ([]*domain.TransferEvent, error)
	// QueryEvents 过滤分页列出事件（时间降序）
	QueryEvents(ctx context.Context, filter EventFilter, page Pagination) ([]*domain.TransferEvent, int64, error)
	// SetEventLedgerRef 补写链上交易引用（事件唯一允许的修改）
	SetEventLedgerRef(ctx context.Context, eventID, txRef string) error

	// CreateReport 创建质检报告并原子更新批次当前等级
	CreateReport(ctx context.Context, r *domain.QualityReport) error
	// GetReport 按报告号获取
	GetReport(ctx context.Context, reportID string) (*domain.QualityReport, error)
	// UpdateReport 按更新命令修改报告；等级变化时原子更新批次等级
	UpdateReport(ctx context.Context, reportID string, upd domain.ReportUpdate) (*domain.QualityReport, error)
	// DeleteReport 删除报告（仅管理员路径调用）
	DeleteReport(ctx context.Context, reportID string) error
	// ListReportsByBatch 按批次列出报告（检验日期升序）
	ListReportsByBatch(ctx context.Context, batchID string) ([]*domain.QualityReport, error)

	// Close 关闭存储连接
	Close()
}
