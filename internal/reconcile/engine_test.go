package reconcile

import (
	"context"
	"testing"
	"time"

	"agritrace/internal/domain"
	"agritrace/internal/ledger"
	"agritrace/internal/storage/cache"
	"agritrace/internal/store"
	"agritrace/pkg/config"
	"agritrace/pkg/log"
)

func newTestEngine(t *testing.T, lc ledger.Client) (*Engine, store.Store, cache.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	c := cache.NewMemoryStore()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(st, lc, c, config.CacheConfig{}, config.SyncConfig{Concurrency: 2}, logger)
	return e, st, c
}

func seedBatch(t *testing.T, st store.Store, batchID string) *domain.Batch {
	t.Helper()
	now := time.Now()
	b := &domain.Batch{
		BatchID: batchID, FarmerID: "farmer-1", CropType: "小麦",
		Quantity: 500, Unit: "kg", HarvestDate: now,
		QualityGrade: domain.GradeA, Status: domain.StatusHarvested,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateBatch(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSyncBatch_AnchorsAndReplaysChain(t *testing.T) {
	ctx := context.Background()
	lc := ledger.NewMemoryClient()
	e, st, _ := newTestEngine(t, lc)
	b := seedBatch(t, st, "AG-2025-300001")

	base := time.Now()
	events := []*domain.TransferEvent{
		{EventID: "ev-1", BatchID: b.BatchID, FromParty: "farmer-1", Type: domain.EventCreation, OccurredAt: base},
		{EventID: "ev-2", BatchID: b.BatchID, FromParty: "farmer-1", ToParty: "dist-1", Type: domain.EventTransfer, OccurredAt: base.Add(time.Minute)},
		{EventID: "ev-3", BatchID: b.BatchID, FromParty: "dist-1", Type: domain.EventPickup, OccurredAt: base.Add(2 * time.Minute)},
	}
	for _, ev := range events {
		if err := st.AppendEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	res := e.SyncBatch(ctx, b.BatchID)
	if res.Outcome != OutcomeSynced || res.TxHash == "" {
		t.Fatalf("SyncBatch: %+v", res)
	}

	got, _ := st.GetBatch(ctx, b.BatchID)
	if !got.Anchored() {
		t.Error("batch should be anchored after sync")
	}

	// 链上事件流被重放
	h, err := lc.QueryHistory(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Custodians) != 2 || h.Custodians[1] != "dist-1" {
		t.Errorf("custodians: %v", h.Custodians)
	}
	if len(h.Statuses) != 2 || h.Statuses[1] != domain.StatusInTransit {
		t.Errorf("statuses: %v", h.Statuses)
	}

	// 转移/状态事件拿到链上引用
	after, _ := st.ListEvents(ctx, b.BatchID)
	if after[1].LedgerTxRef == "" || after[2].LedgerTxRef == "" {
		t.Errorf("event ledger refs not set: %+v %+v", after[1], after[2])
	}
}

func TestSyncBatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	lc := ledger.NewMemoryClient()
	e, st, _ := newTestEngine(t, lc)
	b := seedBatch(t, st, "AG-2025-300002")

	first := e.SyncBatch(ctx, b.BatchID)
	if first.Outcome != OutcomeSynced {
		t.Fatalf("first sync: %+v", first)
	}
	second := e.SyncBatch(ctx, b.BatchID)
	if second.Outcome != OutcomeSkipped {
		t.Fatalf("second sync should be skipped: %+v", second)
	}
}

func TestSyncBatch_Unconfigured(t *testing.T) {
	ctx := context.Background()
	e, st, _ := newTestEngine(t, ledger.Unconfigured{})
	b := seedBatch(t, st, "AG-2025-300003")

	res := e.SyncBatch(ctx, b.BatchID)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("unconfigured sync: %+v", res)
	}
}

func TestSyncAll_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	lc := ledger.NewMemoryClient()
	e, st, _ := newTestEngine(t, lc)

	seedBatch(t, st, "AG-2025-300010")
	seedBatch(t, st, "AG-2025-300011")
	// 预先登记一个，制造 skipped
	pre := seedBatch(t, st, "AG-2025-300012")
	if _, err := lc.SubmitBatch(ctx, pre); err != nil {
		t.Fatal(err)
	}

	summary, err := e.SyncAll(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 3 || summary.Synced != 2 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("summary: %+v", summary)
	}

	// 全部处理完后没有未锚定批次（skipped 的因链上已有而无法写回哈希）
	remaining, _ := st.ListUnanchored(ctx, 100)
	if len(remaining) != 1 || remaining[0].BatchID != pre.BatchID {
		t.Errorf("unanchored after sync: %v", remaining)
	}
}

func TestVerifyIntegrity_UnanchoredSkipsLedger(t *testing.T) {
	ctx := context.Background()
	lc := ledger.NewMemoryClient()
	e, st, _ := newTestEngine(t, lc)
	b := seedBatch(t, st, "AG-2025-300020")

	// 故障注入：若引擎打扰账本会立即失败
	lc.FailNext = domain.ErrLedgerUnavailable
	v, err := e.VerifyIntegrity(ctx, b.BatchID)
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if v.Verified || v.OnLedger || v.Cached {
		t.Errorf("unanchored verification: %+v", v)
	}
	lc.FailNext = nil
}

func TestVerifyIntegrity_AnchoredAndCached(t *testing.T) {
	ctx := context.Background()
	lc := ledger.NewMemoryClient()
	e, st, _ := newTestEngine(t, lc)
	b := seedBatch(t, st, "AG-2025-300021")

	res := e.SyncBatch(ctx, b.BatchID)
	if res.Outcome != OutcomeSynced {
		t.Fatal(res)
	}

	v, err := e.VerifyIntegrity(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Verified || !v.OnLedger || v.Cached {
		t.Errorf("first verification: %+v", v)
	}

	// 第二次命中缓存
	v2, err := e.VerifyIntegrity(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if !v2.Cached || !v2.Verified {
		t.Errorf("cached verification: %+v", v2)
	}
}

func TestVerifyIntegrity_LedgerUnavailableDegrades(t *testing.T) {
	ctx := context.Background()
	lc := ledger.NewMemoryClient()
	e, st, _ := newTestEngine(t, lc)
	b := seedBatch(t, st, "AG-2025-300022")

	if res := e.SyncBatch(ctx, b.BatchID); res.Outcome != OutcomeSynced {
		t.Fatal(res)
	}
	e.invalidateVerification(ctx, b.BatchID)

	// 账本不可用时降级为未核验而不是报错
	lc.FailNext = domain.ErrLedgerUnavailable
	v, err := e.VerifyIntegrity(ctx, b.BatchID)
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if v.Verified || v.OnLedger {
		t.Errorf("degraded verification: %+v", v)
	}

	// 降级结果不会进缓存，恢复后立即重新核验
	v2, err := e.VerifyIntegrity(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if !v2.Verified || v2.Cached {
		t.Errorf("recovered verification: %+v", v2)
	}
}

func TestVerifyIntegrity_MissingBatch(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, ledger.NewMemoryClient())
	if _, err := e.VerifyIntegrity(ctx, "AG-2025-999999"); err == nil {
		t.Error("missing batch should error")
	}
}
