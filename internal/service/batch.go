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

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"agritrace/internal/domain"
	"agritrace/internal/ledger"
	"agritrace/internal/storage/cache"
	"agritrace/internal/store"
	"agritrace/pkg/auth"
	"agritrace/pkg/config"
	"agritrace/pkg/log"
	"agritrace/pkg/metrics"
	"agritrace/pkg/utils"
)

// BatchService 批次与持有权业务逻辑。
// 链上提交一律在主存储事务提交之后进行（两阶段锚定）：本地先成为
// 事实来源，链上失败只影响锚定状态，由对账引擎兜底补齐。
type BatchService struct {
	store    store.Store
	ledger   ledger.Client
	cache    cache.Store
	cacheCfg config.CacheConfig
	logger   *log.Logger
}

// NewBatchService 创建批次服务
func NewBatchService(st store.Store, lc ledger.Client, c cache.Store, cacheCfg config.CacheConfig, logger *log.Logger) *BatchService {
	return &BatchService{
		store:    st,
		ledger:   lc,
		cache:    c,
		cacheCfg: cacheCfg,
		logger:   logger.With("component", "batch_service"),
	}
}

// CreateBatchInput 创建批次请求
type CreateBatchInput struct {
	CropType         string    `json:"crop_type"`
	Quantity         float64   `json:"quantity"`
	Unit             string    `json:"unit"`
	HarvestDate      time.Time `json:"harvest_date"`
	QualityGrade     string    `json:"quality_grade"`
	Location         string    `json:"location"`
	PesticideUsed    bool      `json:"pesticide_used"`
	OrganicCertified bool      `json:"organic_certified"`
}

// createIDRetries 批次号随机序号冲突时的重试次数
const createIDRetries = 3

// CreateBatch 创建批次并追加创建事件；配置了外部账本时尽力锚定。
// 返回的批次 OnLedger 语义由 Anchored() 表达。
func (s *BatchService) CreateBatch(ctx context.Context, in CreateBatchInput) (*domain.Batch, error) {
	actor := auth.ActorFromContext(ctx)
	if in.CropType == "" || in.Quantity <= 0 {
		return nil, domain.ErrInvalidInput
	}
	grade := domain.Grade(in.QualityGrade)
	if in.QualityGrade == "" {
		grade = domain.GradeB
	}
	if !domain.ValidGrade(grade) {
		return nil, domain.ErrInvalidInput
	}
	if in.HarvestDate.IsZero() {
		in.HarvestDate = time.Now()
	} else if in.HarvestDate.After(time.Now()) {
		return nil, domain.ErrInvalidInput
	}
	in.Unit = utils.CoalesceString(in.Unit, "kg")

	now := time.Now()
	b := &domain.Batch{
		FarmerID:         actor.ID,
		CropType:         in.CropType,
		Quantity:         in.Quantity,
		Unit:             in.Unit,
		HarvestDate:      in.HarvestDate,
		QualityGrade:     grade,
		Status:           domain.StatusHarvested,
		Location:         in.Location,
		PesticideUsed:    in.PesticideUsed,
		OrganicCertified: in.OrganicCertified,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// 随机序号可能撞号，带重试
	var err error
	for i := 0; i < createIDRetries; i++ {
		b.BatchID = domain.NewBatchID(now)
		err = s.store.CreateBatch(ctx, b)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrDuplicateResource) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	event := &domain.TransferEvent{
		EventID:    uuid.NewString(),
		BatchID:    b.BatchID,
		FromParty:  actor.ID,
		Type:       domain.EventCreation,
		Location:   in.Location,
		OccurredAt: now,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		return nil, err
	}
	metrics.CustodyEventTotal.WithLabelValues(string(domain.EventCreation)).Inc()

	// 本地已提交，链上锚定尽力而为
	if s.ledger.Configured() {
		s.anchorBatch(ctx, b, event)
	}

	s.invalidateAnalytics(ctx)
	s.logger.Info("批次已创建", "batch_id", b.BatchID, "farmer_id", b.FarmerID, "on_ledger", b.Anchored())
	return b, nil
}

// anchorBatch 在主存储事务之外提交链上登记；失败只记日志，留给对账补齐
func (s *BatchService) anchorBatch(ctx context.Context, b *domain.Batch, creation *domain.TransferEvent) {
	txHash, err := s.ledger.SubmitBatch(ctx, b)
	if err != nil {
		s.logger.Warn("链上登记失败，批次保持未锚定", "batch_id", b.BatchID, "error", err)
		return
	}
	if err := s.store.SetAnchor(ctx, b.BatchID, txHash); err != nil {
		s.logger.Error("写入锚定哈希失败", "batch_id", b.BatchID, "tx_hash", txHash, "error", err)
		return
	}
	b.LedgerTxHash = txHash
	if creation != nil {
		if err := s.store.SetEventLedgerRef(ctx, creation.EventID, txHash); err != nil {
			s.logger.Warn("补写事件链上引用失败", "event_id", creation.EventID, "error", err)
		}
	}
}

// GetBatch 获取批次详情与完整事件流
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, []*domain.TransferEvent, error) {
	b, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.store.ListEvents(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	return b, events, nil
}

// ListBatches 角色可见范围内列出批次：农户只能看自己的，其余角色全量
func (s *BatchService) ListBatches(ctx context.Context, filter store.BatchFilter, page store.Pagination) ([]*domain.Batch, int64, error) {
	actor := auth.ActorFromContext(ctx)
	if actor.Role == auth.RoleFarmer {
		filter.FarmerID = actor.ID
	}
	return s.store.ListBatches(ctx, filter, page)
}

// DeleteBatch 删除批次（仅管理员），并清掉关联缓存
func (s *BatchService) DeleteBatch(ctx context.Context, batchID string) error {
	actor := auth.ActorFromContext(ctx)
	if !auth.IsAdmin(actor.Role) {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteBatch(ctx, batchID); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cache.VerificationKey(batchID)); err != nil {
		s.logger.Warn("清除核验缓存失败", "batch_id", batchID, "error", err)
	}
	s.invalidateAnalytics(ctx)
	s.logger.Info("批次已删除", "batch_id", batchID, "by", actor.ID)
	return nil
}

// TransferInput 持有权转移请求
type TransferInput struct {
	BatchID     string   `json:"batch_id"`
	ToParty     string   `json:"to_party"`
	Location    string   `json:"location"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Notes       string   `json:"notes"`
}

// TransferCustody 转移持有权：当前持有人推导、校验与事件写入在同一
// 事务（行锁）内完成，两个并发转移只会有一个成功。
func (s *BatchService) TransferCustody(ctx context.Context, in TransferInput) (*domain.TransferEvent, error) {
	actor := auth.ActorFromContext(ctx)
	if in.BatchID == "" {
		return nil, domain.ErrInvalidInput
	}

	event, err := s.store.TransferCustody(ctx, in.BatchID, func(b *domain.Batch, events []*domain.TransferEvent) (*domain.TransferEvent, error) {
		if domain.IsTerminal(b.Status) {
			return nil, domain.ErrInvalidTransition
		}
		owner := domain.CurrentOwner(b, events)
		if err := domain.ValidateTransfer(owner, actor.ID, in.ToParty, actor.Role); err != nil {
			return nil, err
		}
		return &domain.TransferEvent{
			EventID:     uuid.NewString(),
			BatchID:     b.BatchID,
			FromParty:   owner,
			ToParty:     in.ToParty,
			Type:        domain.EventTransfer,
			Location:    in.Location,
			Temperature: in.Temperature,
			Humidity:    in.Humidity,
			Notes:       in.Notes,
			OccurredAt:  time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.CustodyEventTotal.WithLabelValues(string(domain.EventTransfer)).Inc()

	// 已锚定的批次把转移也登记上链；失败不回滚本地事实
	s.anchorEventRef(ctx, in.BatchID, event, func(ctx context.Context) (string, error) {
		return s.ledger.SubmitTransfer(ctx, in.BatchID, event.FromParty, event.ToParty)
	})

	s.invalidateAnalytics(ctx)
	s.logger.Info("持有权已转移", "batch_id", in.BatchID, "from", event.FromParty, "to", event.ToParty)
	return event, nil
}

// anchorEventRef 对已锚定批次把事件登记上链并补写交易引用
func (s *BatchService) anchorEventRef(ctx context.Context, batchID string, event *domain.TransferEvent, submit func(ctx context.Context) (string, error)) {
	if !s.ledger.Configured() {
		return
	}
	b, err := s.store.GetBatch(ctx, batchID)
	if err != nil || !b.Anchored() {
		return
	}
	txRef, err := submit(ctx)
	if err != nil {
		s.logger.Warn("事件链上登记失败", "batch_id", batchID, "event_id", event.EventID, "error", err)
		return
	}
	event.LedgerTxRef = txRef
	if err := s.store.SetEventLedgerRef(ctx, event.EventID, txRef); err != nil {
		s.logger.Warn("补写事件链上引用失败", "event_id", event.EventID, "error", err)
	}
}

// StatusUpdateInput 状态更新请求
type StatusUpdateInput struct {
	BatchID  string `json:"batch_id"`
	Status   string `json:"status"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// statusEventType 状态变更对应的事件类型
func statusEventType(to domain.Status) domain.EventType {
	switch to {
	case domain.StatusInTransit:
		return domain.EventPickup
	case domain.StatusDelivered:
		return domain.EventDelivery
	case domain.StatusSold:
		return domain.EventSale
	default:
		return ""
	}
}

// UpdateStatus 推进批次状态：流转表校验与写入在行锁内完成
func (s *BatchService) UpdateStatus(ctx context.Context, in StatusUpdateInput) (*domain.Batch, error) {
	actor := auth.ActorFromContext(ctx)
	if in.BatchID == "" || in.Status == "" {
		return nil, domain.ErrInvalidInput
	}
	requested := domain.Status(strings.ToLower(in.Status))

	var appended *domain.TransferEvent
	b, err := s.store.UpdateStatusLocked(ctx, in.BatchID, func(cur *domain.Batch, events []*domain.TransferEvent) (domain.Status, *domain.TransferEvent, error) {
		owner := domain.CurrentOwner(cur, events)
		if err := domain.ValidTransition(cur.Status, requested, actor.Role, owner == actor.ID); err != nil {
			return "", nil, err
		}
		var e *domain.TransferEvent
		if typ := statusEventType(requested); typ != "" {
			e = &domain.TransferEvent{
				EventID:    uuid.NewString(),
				BatchID:    cur.BatchID,
				FromParty:  actor.ID,
				Type:       typ,
				Location:   in.Location,
				Notes:      in.Notes,
				OccurredAt: time.Now(),
			}
		}
		appended = e
		return requested, e, nil
	})
	if err != nil {
		return nil, err
	}
	if appended != nil {
		metrics.CustodyEventTotal.WithLabelValues(string(appended.Type)).Inc()
	}

	if appended != nil {
		s.anchorEventRef(ctx, in.BatchID, appended, func(ctx context.Context) (string, error) {
			return s.ledger.SubmitStatus(ctx, in.BatchID, requested)
		})
	}

	s.invalidateAnalytics(ctx)
	s.logger.Info("批次状态已更新", "batch_id", in.BatchID, "status", requested, "by", actor.ID)
	return b, nil
}

// VerifyInput 批次核验盖章请求
type VerifyInput struct {
	BatchID  string `json:"batch_id"`
	Verified bool   `json:"verified"`
	Notes    string `json:"notes"`
}

// VerifyBatch 质检员/管理员对批次盖章，并使核验缓存失效
func (s *BatchService) VerifyBatch(ctx context.Context, in VerifyInput) (*domain.Batch, error) {
	actor := auth.ActorFromContext(ctx)
	if !auth.HasPermission(actor.Role, auth.PermissionVerifyStamp) {
		return nil, domain.ErrForbidden
	}
	if in.BatchID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := s.store.StampVerification(ctx, in.BatchID, domain.VerificationStamp{
		Verified:   in.Verified,
		VerifiedBy: actor.ID,
		Notes:      in.Notes,
		VerifiedAt: time.Now(),
	}); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, cache.VerificationKey(in.BatchID)); err != nil {
		s.logger.Warn("清除核验缓存失败", "batch_id", in.BatchID, "error", err)
	}
	s.logger.Info("批次核验已盖章", "batch_id", in.BatchID, "verified", in.Verified, "by", actor.ID)
	return s.store.GetBatch(ctx, in.BatchID)
}

// QueryEvents 过滤分页列出流转事件
func (s *BatchService) QueryEvents(ctx context.Context, filter store.EventFilter, page store.Pagination) ([]*domain.TransferEvent, int64, error) {
	return s.store.QueryEvents(ctx, filter, page)
}

// invalidateAnalytics 写路径后清掉分析缓存
func (s *BatchService) invalidateAnalytics(ctx context.Context) {
	if _, err := s.cache.DeletePattern(ctx, cache.AnalyticsPattern); err != nil {
		s.logger.Warn("清除分析缓存失败", "error", err)
	}
}
