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

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agritrace/internal/domain"
)

// MemoryStore 内存实现：与 Postgres 实现保持同一语义，供测试与单机部署。
// 单把写锁即是全局事务边界，检查-写入天然串行。
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*domain.Batch
	events  map[string][]*domain.TransferEvent // batchID -> 发生时间升序
	reports map[string]*domain.QualityReport
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]*domain.Batch),
		events:  make(map[string][]*domain.TransferEvent),
		reports: make(map[string]*domain.QualityReport),
	}
}

func cloneBatch(b *domain.Batch) *domain.Batch {
	c := *b
	if b.VerifiedAt != nil {
		t := *b.VerifiedAt
		c.VerifiedAt = &t
	}
	return &c
}

func cloneEvent(e *domain.TransferEvent) *domain.TransferEvent {
	c := *e
	if e.Temperature != nil {
		v := *e.Temperature
		c.Temperature = &v
	}
	if e.Humidity != nil {
		v := *e.Humidity
		c.Humidity = &v
	}
	return &c
}

func cloneReport(r *domain.QualityReport) *domain.QualityReport {
	c := *r
	if r.MoistureContent != nil {
		v := *r.MoistureContent
		c.MoistureContent = &v
	}
	return &c
}

// CreateBatch 创建批次；批次号冲突返回 ErrDuplicateResource
func (s *MemoryStore) CreateBatch(ctx context.Context, b *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.BatchID]; exists {
		return domain.ErrDuplicateResource
	}
	s.batches[b.BatchID] = cloneBatch(b)
	return nil
}

// GetBatch 按批次号获取
func (s *MemoryStore) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBatch(b), nil
}

func applyBatchUpdate(b *domain.Batch, upd domain.BatchUpdate, now time.Time) {
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	if upd.Location != nil {
		b.Location = *upd.Location
	}
	if upd.QualityGrade != nil {
		b.QualityGrade = *upd.QualityGrade
	}
	if upd.LedgerTxHash != nil {
		b.LedgerTxHash = *upd.LedgerTxHash
	}
	b.UpdatedAt = now
}

// UpdateBatch 按更新命令修改允许的字段
func (s *MemoryStore) UpdateBatch(ctx context.Context, batchID string, upd domain.BatchUpdate) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	applyBatchUpdate(b, upd, time.Now())
	return cloneBatch(b), nil
}

// DeleteBatch 删除批次并级联删除其事件与报告
func (s *MemoryStore) DeleteBatch(ctx context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batchID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.batches, batchID)
	delete(s.events, batchID)
	for id, r := range s.reports {
		if r.BatchID == batchID {
			delete(s.reports, id)
		}
	}
	return nil
}

func matchBatch(b *domain.Batch, f BatchFilter) bool {
	if f.FarmerID != "" && b.FarmerID != f.FarmerID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.CropType != "" && !strings.Contains(strings.ToLower(b.CropType), strings.ToLower(f.CropType)) {
		return false
	}
	return true
}

// ListBatches 过滤分页列出批次（创建时间降序），返回总数
func (s *MemoryStore) ListBatches(ctx context.Context, filter BatchFilter, page Pagination) ([]*domain.Batch, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*domain.Batch
	for _, b := range s.batches {
		if matchBatch(b, filter) {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if page.Limit <= 0 {
		page.Limit = 50
	}
	if page.Offset >= len(matched) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*domain.Batch, 0, end-page.Offset)
	for _, b := range matched[page.Offset:end] {
		out = append(out, cloneBatch(b))
	}
	return out, total, nil
}

// ListUnanchored 列出尚未锚定的批次（创建时间升序，先来先锚定）
func (s *MemoryStore) ListUnanchored(ctx context.Context, limit int) ([]*domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Batch
	for _, b := range s.batches {
		if b.LedgerTxHash == "" {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	cloned := make([]*domain.Batch, 0, len(out))
	for _, b := range out {
		cloned = append(cloned, cloneBatch(b))
	}
	return cloned, nil
}

// SetAnchor 写入锚定哈希
func (s *MemoryStore) SetAnchor(ctx context.Context, batchID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	b.LedgerTxHash = txHash
	b.UpdatedAt = time.Now()
	return nil
}

// StampVerification 写入核验盖章元数据
func (s *MemoryStore) StampVerification(ctx context.Context, batchID string, v domain.VerificationStamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Verified = v.Verified
	b.VerifiedBy = v.VerifiedBy
	b.VerificationNotes = v.Notes
	at := v.VerifiedAt
	b.VerifiedAt = &at
	b.UpdatedAt = time.Now()
	return nil
}

// CountByStatus 各状态批次数
func (s *MemoryStore) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Status]int64)
	for _, b := range s.batches {
		out[b.Status]++
	}
	return out, nil
}

// TransferCustody 写锁内执行 fn 并追加其返回的事件
func (s *MemoryStore) TransferCustody(ctx context.Context, batchID string, fn TransferFunc) (*domain.TransferEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	events := s.events[batchID]
	e, err := fn(cloneBatch(b), events)
	if err != nil {
		return nil, err
	}
	s.events[batchID] = append(s.events[batchID], cloneEvent(e))
	b.UpdatedAt = time.Now()
	return cloneEvent(e), nil
}

// UpdateStatusLocked 写锁内执行 fn，更新状态并追加事件
func (s *MemoryStore) UpdateStatusLocked(ctx context.Context, batchID string, fn StatusFunc) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	events := s.events[batchID]
	next, e, err := fn(cloneBatch(b), events)
	if err != nil {
		return nil, err
	}
	b.Status = next
	b.UpdatedAt = time.Now()
	if e != nil {
		s.events[batchID] = append(s.events[batchID], cloneEvent(e))
	}
	return cloneBatch(b), nil
}

// AppendEvent 追加一条流转事件；批次不存在返回 ErrInvalidReference
func (s *MemoryStore) AppendEvent(ctx context.Context, e *domain.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[e.BatchID]; !ok {
		return domain.ErrInvalidReference
	}
	s.events[e.BatchID] = append(s.events[e.BatchID], cloneEvent(e))
	return nil
}

// ListEvents 按发生时间升序列出批次的全部事件
func (s *MemoryStore) ListEvents(ctx context.Context, batchID string) ([]*domain.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.batches[batchID]; !ok {
		return nil, domain.ErrNotFound
	}
	events := s.events[batchID]
	out := make([]*domain.TransferEvent, 0, len(events))
	for _, e := range events {
		out = append(out, cloneEvent(e))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// QueryEvents 过滤分页列出事件（时间降序）
func (s *MemoryStore) QueryEvents(ctx context.Context, filter EventFilter, page Pagination) ([]*domain.TransferEvent, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*domain.TransferEvent
	for batchID, events := range s.events {
		if filter.BatchID != "" && batchID != filter.BatchID {
			continue
		}
		for _, e := range events {
			if filter.Type != "" && e.Type != filter.Type {
				continue
			}
			if filter.Party != "" && e.FromParty != filter.Party && e.ToParty != filter.Party {
				continue
			}
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].OccurredAt.After(matched[j].OccurredAt) })
	total := int64(len(matched))
	if page.Limit <= 0 {
		page.Limit = 100
	}
	if page.Offset >= len(matched) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*domain.TransferEvent, 0, end-page.Offset)
	for _, e := range matched[page.Offset:end] {
		out = append(out, cloneEvent(e))
	}
	return out, total, nil
}

// SetEventLedgerRef 补写链上交易引用
func (s *MemoryStore) SetEventLedgerRef(ctx context.Context, eventID, txRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, events := range s.events {
		for _, e := range events {
			if e.EventID == eventID {
				e.LedgerTxRef = txRef
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// CreateReport 创建质检报告并原子更新批次当前等级
func (s *MemoryStore) CreateReport(ctx context.Context, r *domain.QualityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[r.BatchID]
	if !ok {
		return domain.ErrInvalidReference
	}
	if _, exists := s.reports[r.ReportID]; exists {
		return domain.ErrDuplicateResource
	}
	s.reports[r.ReportID] = cloneReport(r)
	b.QualityGrade = r.Grade
	b.UpdatedAt = time.Now()
	return nil
}

// GetReport 按报告号获取
func (s *MemoryStore) GetReport(ctx context.Context, reportID string) (*domain.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneReport(r), nil
}

// UpdateReport 按更新命令修改报告；等级变化时原子更新批次等级
func (s *MemoryStore) UpdateReport(ctx context.Context, reportID string, upd domain.ReportUpdate) (*domain.QualityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := time.Now()
	if upd.Grade != nil {
		r.Grade = *upd.Grade
		if b, ok := s.batches[r.BatchID]; ok {
			b.QualityGrade = *upd.Grade
			b.UpdatedAt = now
		}
	}
	if upd.Remarks != nil {
		r.Remarks = *upd.Remarks
	}
	if upd.PesticideUsed != nil {
		r.PesticideUsed = *upd.PesticideUsed
	}
	if upd.OrganicCertified != nil {
		r.OrganicCertified = *upd.OrganicCertified
	}
	if upd.MoistureContent != nil {
		v := *upd.MoistureContent
		r.MoistureContent = &v
	}
	if upd.Contamination != nil {
		r.Contamination = *upd.Contamination
	}
	if upd.ReportURL != nil {
		r.ReportURL = *upd.ReportURL
	}
	r.UpdatedAt = now
	return cloneReport(r), nil
}

// DeleteReport 删除报告
func (s *MemoryStore) DeleteReport(ctx context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[reportID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.reports, reportID)
	return nil
}

// ListReportsByBatch 按批次列出报告（检验日期升序）
func (s *MemoryStore) ListReportsByBatch(ctx context.Context, batchID string) ([]*domain.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.batches[batchID]; !ok {
		return nil, domain.ErrNotFound
	}
	var out []*domain.QualityReport
	for _, r := range s.reports {
		if r.BatchID == batchID {
			out = append(out, cloneReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InspectionDate.Before(out[j].InspectionDate) })
	return out, nil
}

// Close 关闭存储（内存实现为空操作）
func (s *MemoryStore) Close() {}
