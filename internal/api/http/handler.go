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

package http

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"agritrace/internal/domain"
	"agritrace/internal/reconcile"
	"agritrace/internal/service"
	"agritrace/internal/store"
	"agritrace/pkg/log"
	"agritrace/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	batch      *service.BatchService
	inspection *service.InspectionService
	analytics  *service.AnalyticsService
	reconciler *reconcile.Engine
	logger     *log.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(batch *service.BatchService, inspection *service.InspectionService, analytics *service.AnalyticsService, reconciler *reconcile.Engine, logger *log.Logger) *Handler {
	return &Handler{
		batch:      batch,
		inspection: inspection,
		analytics:  analytics,
		reconciler: reconciler,
		logger:     logger,
	}
}

// writeError 领域错误到 HTTP 状态码的统一映射
func (h *Handler) writeError(c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateResource),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyAnchored),
		errors.Is(err, domain.ErrConflict):
		status = consts.StatusConflict
	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrWindowExpired):
		status = consts.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidReference),
		errors.Is(err, domain.ErrSelfTransfer):
		status = consts.StatusBadRequest
	case errors.Is(err, domain.ErrLedgerUnavailable):
		status = consts.StatusBadGateway
	case errors.Is(err, domain.ErrUnconfigured):
		status = consts.StatusServiceUnavailable
	}
	if status == consts.StatusInternalServerError {
		h.logger.Error("请求处理失败", "error", err)
	}
	c.JSON(status, map[string]interface{}{"error": err.Error()})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "agritrace-api",
	})
}

// SystemMetrics Prometheus 指标
func (h *Handler) SystemMetrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// CreateBatch 创建批次
func (h *Handler) CreateBatch(ctx context.Context, c *app.RequestContext) {
	var in service.CreateBatchInput
	if err := c.BindJSON(&in); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体不合法"})
		return
	}
	b, err := h.batch.CreateBatch(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, map[string]interface{}{
		"batch":     b,
		"on_ledger": b.Anchored(),
	})
}

// pagination 解析分页查询参数
func pagination(c *app.RequestContext) store.Pagination {
	page := store.Pagination{Limit: 50}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		page.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		page.Offset = v
	}
	return page
}

// ListBatches 列出批次（农户只能看到自己的）
func (h *Handler) ListBatches(ctx context.Context, c *app.RequestContext) {
	filter := store.BatchFilter{
		FarmerID: c.Query("farmer_id"),
		Status:   domain.Status(c.Query("status")),
		CropType: c.Query("crop_type"),
	}
	batches, total, err := h.batch.ListBatches(ctx, filter, pagination(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"batches": batches,
		"total":   total,
	})
}

// GetBatch 批次详情与完整事件流
func (h *Handler) GetBatch(ctx context.Context, c *app.RequestContext) {
	b, events, err := h.batch.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"batch":         b,
		"events":        events,
		"custody_chain": domain.CustodyChain(b, events),
		"current_owner": domain.CurrentOwner(b, events),
	})
}

// UpdateBatchStatus 推进批次状态
func (h *Handler) UpdateBatchStatus(ctx context.Context, c *app.RequestContext) {
	var in service.StatusUpdateInput
	if err := c.BindJSON(&in); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体不合法"})
		return
	}
	in.BatchID = c.Param("id")
	b, err := h.batch.UpdateStatus(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"batch": b})
}

// DeleteBatch 删除批次（仅管理员）
func (h *Handler) DeleteBatch(ctx context.Context, c *app.RequestContext) {
	if err := h.batch.DeleteBatch(ctx, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"status": "deleted"})
}

// VerifyBatch 质检员/管理员核验盖章
func (h *Handler) VerifyBatch(ctx context.Context, c *app.RequestContext) {
	var in service.VerifyInput
	if err := c.BindJSON(&in); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体不合法"})
		return
	}
	in.BatchID = c.Param("id")
	b, err := h.batch.VerifyBatch(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"batch": b})
}

// CreateTransfer 持有权转移
func (h *Handler) CreateTransfer(ctx context.Context, c *app.RequestContext) {
	var in service.TransferInput
	if err := c.BindJSON(&in); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体不合法"})
		return
	}
	event, err := h.batch.TransferCustody(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, map[string]interface{}{"event": event})
}

// ListTransfers 过滤分页列出流转事件
func (h *Handler) ListTransfers(ctx context.Context, c *app.RequestContext) {
	filter := store.EventFilter{
		BatchID: c.Query("batch_id"),
		Party:   c.Query("party"),
		Type:    domain.EventType(c.Query("type")),
	}
	events, total, err := h.batch.QueryEvents(ctx, filter, pagination(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// ListBatchEvents 批次完整事件流（升序）
func (h *Handler) ListBatchEvents(ctx context.Context, c *app.RequestContext) {
	_, events, err := h.batch.GetBatch(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"events": events})
}

// CreateReport 录入质检报告
func (h *Handler) CreateReport(ctx context.Context, c *app.RequestContext) {
	var in service.ReportInput
	if err := c.BindJSON(&in); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体不合法"})
		return
	}
	r, err := h.inspection.RecordInspection(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, map[string]interface{}{"report": r})
}

// GetReport 质检报告详情
func (h *Handler) GetReport(ctx context.Context, c *app.RequestContext) {
	r, err := h.inspection.GetReport(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"report": r})
}

// reportUpdateBody 质检报告修改请求体（nil 字段不修改）
type reportUpdateBody struct {
	Grade            *string  `json:"grade"`
	Remarks          *string  `json:"remarks"`
	PesticideUsed    *bool    `json:"pesticide_used"`
	OrganicCertified *bool    `json:"organic_certified"`
	MoistureContent  *float64 `json:"moisture_content"`
	Contamination    *string  `json:"contamination"`
	ReportURL        *string  `json:"report_url"`
}

// UpdateReport 修改质检报告（创建者 24h 窗口内 / 管理员）
func (h *Handler) UpdateReport(ctx context.Context, c *app.RequestContext) {
	var body reportUpdateBody
	if err := c.BindJSON(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "请求体不合法"})
		return
	}
	upd := domain.ReportUpdate{
		Remarks:          body.Remarks,
		PesticideUsed:    body.PesticideUsed,
		OrganicCertified: body.OrganicCertified,
		MoistureContent:  body.MoistureContent,
		Contamination:    body.Contamination,
		ReportURL:        body.ReportURL,
	}
	if body.Grade != nil {
		g := domain.Grade(*body.Grade)
		upd.Grade = &g
	}
	r, err := h.inspection.UpdateReport(ctx, c.Param("id"), upd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"report": r})
}

// DeleteReport 删除质检报告（仅管理员）
func (h *Handler) DeleteReport(ctx context.Context, c *app.RequestContext) {
	if err := h.inspection.DeleteReport(ctx, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"status": "deleted"})
}

// ListBatchReports 批次的全部质检报告
func (h *Handler) ListBatchReports(ctx context.Context, c *app.RequestContext) {
	reports, err := h.inspection.ListReports(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"reports": reports})
}

// LedgerVerify 批次链上核验（带缓存）
func (h *Handler) LedgerVerify(ctx context.Context, c *app.RequestContext) {
	v, err := h.reconciler.VerifyIntegrity(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, v)
}

// LedgerHistory 链上持有链与状态历史
func (h *Handler) LedgerHistory(ctx context.Context, c *app.RequestContext) {
	history, err := h.reconciler.History(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, history)
}

// LedgerSync 批量同步未锚定批次（手动触发）
func (h *Handler) LedgerSync(ctx context.Context, c *app.RequestContext) {
	limit := 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	summary, err := h.reconciler.SyncAll(ctx, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, summary)
}

// AnalyticsOverview 供应链概览统计（带缓存）
func (h *Handler) AnalyticsOverview(ctx context.Context, c *app.RequestContext) {
	overview, err := h.analytics.GetOverview(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, overview)
}

// CacheClear 管理员清空缓存
func (h *Handler) CacheClear(ctx context.Context, c *app.RequestContext) {
	n, err := h.analytics.ClearCache(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"deleted": n})
}
