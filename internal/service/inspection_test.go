package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agritrace/internal/domain"
	"agritrace/internal/ledger"
	"agritrace/internal/store"
	"agritrace/pkg/auth"
	"agritrace/pkg/log"
)

func newTestInspectionService(t *testing.T) (*InspectionService, *BatchService, store.Store) {
	t.Helper()
	bsvc, st := newTestBatchService(t, ledger.Unconfigured{})
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewInspectionService(st, logger), bsvc, st
}

func TestRecordInspection(t *testing.T) {
	isvc, bsvc, st := newTestInspectionService(t)
	inspCtx := asActor("insp-1", auth.RoleInspector)

	b, err := bsvc.CreateBatch(asActor("farmer-1", auth.RoleFarmer), CreateBatchInput{
		CropType: "小麦", Quantity: 100, QualityGrade: "B",
	})
	if err != nil {
		t.Fatal(err)
	}

	moisture := 12.5
	r, err := isvc.RecordInspection(inspCtx, ReportInput{
		BatchID: b.BatchID, Grade: "A", MoistureContent: &moisture, Remarks: "符合出口标准",
	})
	if err != nil {
		t.Fatalf("RecordInspection: %v", err)
	}
	if r.InspectorID != "insp-1" || r.Grade != domain.GradeA {
		t.Errorf("report: %+v", r)
	}

	// 等级 last-write-wins 到批次
	got, _ := st.GetBatch(context.Background(), b.BatchID)
	if got.QualityGrade != domain.GradeA {
		t.Errorf("batch grade: %s", got.QualityGrade)
	}

	// 追加了质检事件
	events, _ := st.ListEvents(context.Background(), b.BatchID)
	found := false
	for _, e := range events {
		if e.Type == domain.EventInspection {
			found = true
		}
	}
	if !found {
		t.Error("inspection event missing")
	}

	// 第二份报告把等级改低，仍以最后一份为准
	if _, err := isvc.RecordInspection(inspCtx, ReportInput{BatchID: b.BatchID, Grade: "B"}); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetBatch(context.Background(), b.BatchID)
	if got.QualityGrade != domain.GradeB {
		t.Errorf("grade after second report: %s", got.QualityGrade)
	}
}

func TestRecordInspection_Permissions(t *testing.T) {
	isvc, bsvc, _ := newTestInspectionService(t)
	b, err := bsvc.CreateBatch(asActor("farmer-1", auth.RoleFarmer), CreateBatchInput{CropType: "小麦", Quantity: 10})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := isvc.RecordInspection(asActor("dist-1", auth.RoleDistributor), ReportInput{BatchID: b.BatchID, Grade: "A"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("distributor report: %v", err)
	}
	if _, err := isvc.RecordInspection(asActor("insp-1", auth.RoleInspector), ReportInput{BatchID: b.BatchID, Grade: "S"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown grade: %v", err)
	}
	if _, err := isvc.RecordInspection(asActor("insp-1", auth.RoleInspector), ReportInput{BatchID: "AG-2025-999999", Grade: "A"}); !errors.Is(err, domain.ErrInvalidReference) {
		t.Errorf("missing batch: %v", err)
	}
}

func TestUpdateReport_EditWindow(t *testing.T) {
	isvc, bsvc, st := newTestInspectionService(t)
	inspCtx := asActor("insp-1", auth.RoleInspector)

	b, err := bsvc.CreateBatch(asActor("farmer-1", auth.RoleFarmer), CreateBatchInput{CropType: "小麦", Quantity: 10})
	if err != nil {
		t.Fatal(err)
	}
	r, err := isvc.RecordInspection(inspCtx, ReportInput{BatchID: b.BatchID, Grade: "B"})
	if err != nil {
		t.Fatal(err)
	}

	// 创建者窗口内可改
	grade := domain.GradeA
	updated, err := isvc.UpdateReport(inspCtx, r.ReportID, domain.ReportUpdate{Grade: &grade})
	if err != nil {
		t.Fatalf("in-window update: %v", err)
	}
	if updated.Grade != domain.GradeA {
		t.Errorf("grade: %s", updated.Grade)
	}
	got, _ := st.GetBatch(context.Background(), b.BatchID)
	if got.QualityGrade != domain.GradeA {
		t.Errorf("batch grade after report update: %s", got.QualityGrade)
	}

	// 其他质检员不能改
	if _, err := isvc.UpdateReport(asActor("insp-2", auth.RoleInspector), r.ReportID, domain.ReportUpdate{Grade: &grade}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other inspector: %v", err)
	}

	// 窗口以检验时间为基准：回填历史检验的报告刚落库（CreatedAt 是现在）
	// 也不可改，管理员不受限
	backdated, err := isvc.RecordInspection(inspCtx, ReportInput{
		BatchID: b.BatchID, Grade: "B", InspectionDate: time.Now().Add(-25 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := isvc.UpdateReport(inspCtx, backdated.ReportID, domain.ReportUpdate{Grade: &grade}); !errors.Is(err, domain.ErrWindowExpired) {
		t.Errorf("backdated inspection update: %v", err)
	}
	remarks := "管理员修订"
	if _, err := isvc.UpdateReport(asActor("admin-1", auth.RoleAdmin), backdated.ReportID, domain.ReportUpdate{Remarks: &remarks}); err != nil {
		t.Errorf("admin update: %v", err)
	}

	// 反向：检验时间在窗口内时，落库再久也不影响创建者修改
	stale := &domain.QualityReport{
		ReportID: "rep-stale", BatchID: b.BatchID, InspectorID: "insp-1",
		Grade: domain.GradeB, InspectionDate: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-48 * time.Hour), UpdatedAt: time.Now().Add(-48 * time.Hour),
	}
	if err := st.CreateReport(context.Background(), stale); err != nil {
		t.Fatal(err)
	}
	if _, err := isvc.UpdateReport(inspCtx, stale.ReportID, domain.ReportUpdate{Grade: &grade}); err != nil {
		t.Errorf("recent inspection update: %v", err)
	}
}

func TestDeleteReport_AdminOnly(t *testing.T) {
	isvc, bsvc, _ := newTestInspectionService(t)
	b, err := bsvc.CreateBatch(asActor("farmer-1", auth.RoleFarmer), CreateBatchInput{CropType: "小麦", Quantity: 10})
	if err != nil {
		t.Fatal(err)
	}
	r, err := isvc.RecordInspection(asActor("insp-1", auth.RoleInspector), ReportInput{BatchID: b.BatchID, Grade: "A"})
	if err != nil {
		t.Fatal(err)
	}

	if err := isvc.DeleteReport(asActor("insp-1", auth.RoleInspector), r.ReportID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("inspector delete: %v", err)
	}
	if err := isvc.DeleteReport(asActor("admin-1", auth.RoleAdmin), r.ReportID); err != nil {
		t.Errorf("admin delete: %v", err)
	}
}
