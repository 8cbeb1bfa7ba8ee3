package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agritrace/internal/domain"
	"agritrace/pkg/config"
)

func TestNewClient_StoreOnlyFallback(t *testing.T) {
	cases := []config.LedgerConfig{
		{},
		{Type: "gateway"},                             // 没有 endpoint
		{Type: "gateway", Endpoint: "http://gw:8545"}, // 没有私钥
	}
	for _, cfg := range cases {
		c, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient(%+v): %v", cfg, err)
		}
		if c.Configured() {
			t.Errorf("NewClient(%+v) should be unconfigured", cfg)
		}
		if _, err := c.SubmitBatch(context.Background(), &domain.Batch{BatchID: "AG-2025-100001"}); !errors.Is(err, domain.ErrUnconfigured) {
			t.Errorf("unconfigured submit: want ErrUnconfigured, got %v", err)
		}
	}
}

func TestNewClient_UnknownType(t *testing.T) {
	if _, err := NewClient(config.LedgerConfig{Type: "quantum"}); err == nil {
		t.Error("unknown ledger type should error")
	}
}

func TestMemoryClient_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()
	b := &domain.Batch{BatchID: "AG-2025-100001", FarmerID: "farmer-1", Status: domain.StatusHarvested}

	ex, err := c.QueryExistence(ctx, b.BatchID)
	if err != nil || ex.Exists {
		t.Fatalf("before submit: ex=%+v err=%v", ex, err)
	}

	tx, err := c.SubmitBatch(ctx, b)
	if err != nil || tx == "" {
		t.Fatalf("SubmitBatch: tx=%q err=%v", tx, err)
	}
	if _, err := c.SubmitBatch(ctx, b); !errors.Is(err, domain.ErrAlreadyAnchored) {
		t.Errorf("double submit: want ErrAlreadyAnchored, got %v", err)
	}

	if _, err := c.SubmitTransfer(ctx, b.BatchID, "farmer-1", "dist-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SubmitStatus(ctx, b.BatchID, domain.StatusInTransit); err != nil {
		t.Fatal(err)
	}

	ex, err = c.QueryExistence(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if !ex.Exists || ex.Custodian != "dist-1" || ex.Status != domain.StatusInTransit {
		t.Errorf("existence: %+v", ex)
	}

	h, err := c.QueryHistory(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Custodians) != 2 || h.Custodians[1] != "dist-1" {
		t.Errorf("custodians: %v", h.Custodians)
	}
	if len(h.Statuses) != 2 || h.Statuses[1] != domain.StatusInTransit {
		t.Errorf("statuses: %v", h.Statuses)
	}

	// 故障注入
	c.FailNext = domain.ErrLedgerUnavailable
	if _, err := c.QueryExistence(ctx, b.BatchID); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Errorf("fault injection: got %v", err)
	}
}

func newGatewayTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chain/batches", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body["batchId"] == "AG-2025-200001" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"txHash": "0xabc001"})
	})
	mux.HandleFunc("POST /chain/batches/{id}/transfer", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"txHash": "0xabc002"})
	})
	mux.HandleFunc("POST /chain/batches/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"txHash": "0xabc003"})
	})
	mux.HandleFunc("GET /chain/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "AG-2025-100404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"custodian": "dist-1", "status": "in_transit"})
	})
	mux.HandleFunc("GET /chain/batches/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"custodians": []string{"farmer-1", "dist-1"},
			"statuses":   []string{"harvested", "in_transit"},
		})
	})
	return httptest.NewServer(mux)
}

func TestGatewayClient(t *testing.T) {
	srv := newGatewayTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	c := NewGatewayClient(srv.URL, "test-key", "0xcontract", 5*time.Second)

	if !c.Configured() {
		t.Fatal("gateway client should report configured")
	}

	tx, err := c.SubmitBatch(ctx, &domain.Batch{BatchID: "AG-2025-100001", FarmerID: "farmer-1", HarvestDate: time.Now()})
	if err != nil || tx != "0xabc001" {
		t.Fatalf("SubmitBatch: tx=%q err=%v", tx, err)
	}

	// 409 映射为已锚定
	_, err = c.SubmitBatch(ctx, &domain.Batch{BatchID: "AG-2025-200001", HarvestDate: time.Now()})
	if !errors.Is(err, domain.ErrAlreadyAnchored) {
		t.Errorf("conflict: want ErrAlreadyAnchored, got %v", err)
	}

	if tx, err := c.SubmitTransfer(ctx, "AG-2025-100001", "farmer-1", "dist-1"); err != nil || tx != "0xabc002" {
		t.Errorf("SubmitTransfer: tx=%q err=%v", tx, err)
	}
	if tx, err := c.SubmitStatus(ctx, "AG-2025-100001", domain.StatusInTransit); err != nil || tx != "0xabc003" {
		t.Errorf("SubmitStatus: tx=%q err=%v", tx, err)
	}

	ex, err := c.QueryExistence(ctx, "AG-2025-100001")
	if err != nil {
		t.Fatal(err)
	}
	if !ex.Exists || ex.Custodian != "dist-1" || ex.Status != domain.StatusInTransit {
		t.Errorf("existence: %+v", ex)
	}

	// 链上未登记不算错误
	ex, err = c.QueryExistence(ctx, "AG-2025-100404")
	if err != nil || ex.Exists {
		t.Errorf("missing batch: ex=%+v err=%v", ex, err)
	}

	h, err := c.QueryHistory(ctx, "AG-2025-100001")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Custodians) != 2 || h.Statuses[1] != domain.StatusInTransit {
		t.Errorf("history: %+v", h)
	}
}

func TestGatewayClient_Unavailable(t *testing.T) {
	// 指向已关闭的服务端
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewGatewayClient(srv.URL, "test-key", "", time.Second)
	_, err := c.SubmitBatch(context.Background(), &domain.Batch{BatchID: "AG-2025-100001", HarvestDate: time.Now()})
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Errorf("want ErrLedgerUnavailable, got %v", err)
	}
	_, err = c.QueryExistence(context.Background(), "AG-2025-100001")
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Errorf("query: want ErrLedgerUnavailable, got %v", err)
	}
}
