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
	"time"

	"github.com/google/uuid"

	"agritrace/internal/domain"
	"agritrace/internal/store"
	"agritrace/pkg/auth"
	"agritrace/pkg/log"
	"agritrace/pkg/metrics"
)

// InspectionService 质检报告业务逻辑。质检不依赖批次状态：任何
// 非终态之外的约束都不施加，等级以最后一份报告为准（last-write-wins）。
type InspectionService struct {
	store  store.Store
	logger *log.Logger
}

// NewInspectionService 创建质检服务
func NewInspectionService(st store.Store, logger *log.Logger) *InspectionService {
	return &InspectionService{
		store:  st,
		logger: logger.With("component", "inspection_service"),
	}
}

// ReportInput 质检报告请求
type ReportInput struct {
	BatchID          string    `json:"batch_id"`
	InspectionDate   time.Time `json:"inspection_date"`
	Grade            string    `json:"grade"`
	PesticideUsed    bool      `json:"pesticide_used"`
	OrganicCertified bool      `json:"organic_certified"`
	MoistureContent  *float64  `json:"moisture_content"`
	Contamination    string    `json:"contamination"`
	Remarks          string    `json:"remarks"`
	ReportURL        string    `json:"report_url"`
}

// RecordInspection 录入质检报告：报告与批次等级在同一事务内落库，
// 并追加一条 inspection 事件。
func (s *InspectionService) RecordInspection(ctx context.Context, in ReportInput) (*domain.QualityReport, error) {
	actor := auth.ActorFromContext(ctx)
	if !auth.HasPermission(actor.Role, auth.PermissionReportCreate) {
		return nil, domain.ErrForbidden
	}
	if in.BatchID == "" {
		return nil, domain.ErrInvalidInput
	}
	grade := domain.Grade(in.Grade)
	if !domain.ValidGrade(grade) {
		return nil, domain.ErrInvalidInput
	}
	if in.InspectionDate.IsZero() {
		in.InspectionDate = time.Now()
	}

	now := time.Now()
	r := &domain.QualityReport{
		ReportID:         uuid.NewString(),
		BatchID:          in.BatchID,
		InspectorID:      actor.ID,
		InspectionDate:   in.InspectionDate,
		Grade:            grade,
		PesticideUsed:    in.PesticideUsed,
		OrganicCertified: in.OrganicCertified,
		MoistureContent:  in.MoistureContent,
		Contamination:    in.Contamination,
		Remarks:          in.Remarks,
		ReportURL:        in.ReportURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}

	event := &domain.TransferEvent{
		EventID:    uuid.NewString(),
		BatchID:    in.BatchID,
		FromParty:  actor.ID,
		Type:       domain.EventInspection,
		Notes:      in.Remarks,
		OccurredAt: now,
	}
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.Warn("追加质检事件失败", "batch_id", in.BatchID, "error", err)
	} else {
		metrics.CustodyEventTotal.WithLabelValues(string(domain.EventInspection)).Inc()
	}

	s.logger.Info("质检报告已录入", "report_id", r.ReportID, "batch_id", in.BatchID, "grade", grade)
	return r, nil
}

// GetReport 获取质检报告
func (s *InspectionService) GetReport(ctx context.Context, reportID string) (*domain.QualityReport, error) {
	return s.store.GetReport(ctx, reportID)
}

// ListReports 按批次列出质检报告
func (s *InspectionService) ListReports(ctx context.Context, batchID string) ([]*domain.QualityReport, error) {
	return s.store.ListReportsByBatch(ctx, batchID)
}

// UpdateReport 修改质检报告：创建者在检验时间起 24 小时窗口内可改，
// 管理员不受限。窗口以 InspectionDate 为基准，回填历史检验的报告
// 一落库即不可改。
func (s *InspectionService) UpdateReport(ctx context.Context, reportID string, upd domain.ReportUpdate) (*domain.QualityReport, error) {
	actor := auth.ActorFromContext(ctx)
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin(actor.Role) {
		if r.InspectorID != actor.ID {
			return nil, domain.ErrForbidden
		}
		if time.Since(r.InspectionDate) > domain.ReportEditWindow {
			return nil, domain.ErrWindowExpired
		}
	}
	if upd.Grade != nil && !domain.ValidGrade(*upd.Grade) {
		return nil, domain.ErrInvalidInput
	}
	updated, err := s.store.UpdateReport(ctx, reportID, upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("质检报告已更新", "report_id", reportID, "by", actor.ID)
	return updated, nil
}

// DeleteReport 删除质检报告（仅管理员）
func (s *InspectionService) DeleteReport(ctx context.Context, reportID string) error {
	actor := auth.ActorFromContext(ctx)
	if !auth.IsAdmin(actor.Role) {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	s.logger.Info("质检报告已删除", "report_id", reportID, "by", actor.ID)
	return nil
}
