package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_Set_Get_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k1", "v1", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v string
	if err := s.Get(ctx, "k1", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "v1" {
		t.Errorf("Get: got %q", v)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "k1", &v); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete: want ErrCacheMiss, got %v", err)
	}
	// 删除不存在的键视为成功
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "k1", 42, time.Second); err != nil {
		t.Fatal(err)
	}
	// 手工把过期时间拨到过去
	s.mu.Lock()
	s.items["k1"].expiration = time.Now().Add(-time.Minute).Unix()
	s.mu.Unlock()

	var v int
	if err := s.Get(ctx, "k1", &v); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired get: want ErrCacheMiss, got %v", err)
	}
	ok, err := s.Exists(ctx, "k1")
	if err != nil || ok {
		t.Errorf("expired exists: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_DeletePattern(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	keys := []string{
		AnalyticsKey("farmer-1", "all"),
		AnalyticsKey("farmer-2", "status=sold"),
		VerificationKey("AG-2025-100001"),
	}
	for _, k := range keys {
		if err := s.Set(ctx, k, "x", 0); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.DeletePattern(ctx, AnalyticsPattern)
	if err != nil {
		t.Fatalf("DeletePattern: %v", err)
	}
	if n != 2 {
		t.Errorf("DeletePattern: deleted %d, want 2", n)
	}
	ok, _ := s.Exists(ctx, VerificationKey("AG-2025-100001"))
	if !ok {
		t.Error("verification key should survive analytics pattern delete")
	}

	n, err = s.DeletePattern(ctx, VerificationPattern)
	if err != nil || n != 1 {
		t.Errorf("verification pattern: n=%d err=%v", n, err)
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, k, k, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if ok, _ := s.Exists(ctx, k); ok {
			t.Errorf("key %q should be cleared", k)
		}
	}
}

func TestMemoryStore_StructRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	type payload struct {
		BatchID  string `json:"batch_id"`
		Verified bool   `json:"verified"`
		OnLedger bool   `json:"on_ledger"`
	}
	in := payload{BatchID: "AG-2025-100002", Verified: true, OnLedger: true}
	if err := s.Set(ctx, VerificationKey(in.BatchID), in, 10*time.Minute); err != nil {
		t.Fatal(err)
	}
	var out payload
	if err := s.Get(ctx, VerificationKey(in.BatchID), &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip: got %+v", out)
	}
}
