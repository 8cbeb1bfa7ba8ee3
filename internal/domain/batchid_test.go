package domain

import (
	"testing"
	"time"
)

func TestNewBatchID_Format(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewBatchID(now)
		if !ValidBatchID(id) {
			t.Fatalf("generated id %q does not match pattern", id)
		}
		if id[:8] != "AG-2025-" {
			t.Fatalf("generated id %q has wrong prefix/year", id)
		}
		seen[id] = true
	}
	// 随机序号应当产生多个不同 id（同值碰撞由调用方重试兜底）
	if len(seen) < 2 {
		t.Error("expected some variety in generated ids")
	}
}

func TestValidBatchID(t *testing.T) {
	valid := []string{"AG-2025-100345", "XY-1999-123", "AG-2025-999999"}
	for _, id := range valid {
		if !ValidBatchID(id) {
			t.Errorf("%q should be valid", id)
		}
	}
	invalid := []string{"", "AG-2025", "ag-2025-100345", "AGR-2025-100345", "AG-25-100345", "AG-2025-12", "AG-2025-1234567"}
	for _, id := range invalid {
		if ValidBatchID(id) {
			t.Errorf("%q should be invalid", id)
		}
	}
}

func TestCompareGrade(t *testing.T) {
	if CompareGrade(GradeAPlus, GradeA) <= 0 {
		t.Error("A+ should rank above A")
	}
	if CompareGrade(GradeC, GradeB) >= 0 {
		t.Error("C should rank below B")
	}
	if CompareGrade(GradeA, GradeA) != 0 {
		t.Error("equal grades should compare to 0")
	}
}
