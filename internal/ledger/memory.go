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

package ledger

import (
	"context"
	"fmt"
	"sync"

	"agritrace/internal/domain"
)

// MemoryClient 内存账本：单机部署与测试用，语义与网关一致。
type MemoryClient struct {
	mu      sync.Mutex
	seq     int
	entries map[string]*memEntry
	// FailNext 非空时下一次调用返回该错误（测试注入故障）
	FailNext error
}

type memEntry struct {
	custodians []string
	statuses   []domain.Status
}

// NewMemoryClient 创建内存账本客户端
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{entries: make(map[string]*memEntry)}
}

func (c *MemoryClient) nextTx() string {
	c.seq++
	return fmt.Sprintf("0xmem%06d", c.seq)
}

func (c *MemoryClient) takeFault() error {
	err := c.FailNext
	c.FailNext = nil
	return err
}

// SubmitBatch 登记批次；重复登记返回 ErrAlreadyAnchored
func (c *MemoryClient) SubmitBatch(ctx context.Context, b *domain.Batch) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFault(); err != nil {
		return "", err
	}
	if _, exists := c.entries[b.BatchID]; exists {
		return "", domain.ErrAlreadyAnchored
	}
	c.entries[b.BatchID] = &memEntry{
		custodians: []string{b.FarmerID},
		statuses:   []domain.Status{b.Status},
	}
	return c.nextTx(), nil
}

// SubmitTransfer 登记一次持有权转移
func (c *MemoryClient) SubmitTransfer(ctx context.Context, batchID, fromParty, toParty string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFault(); err != nil {
		return "", err
	}
	e, exists := c.entries[batchID]
	if !exists {
		return "", domain.ErrNotFound
	}
	e.custodians = append(e.custodians, toParty)
	return c.nextTx(), nil
}

// SubmitStatus 登记一次状态变更
func (c *MemoryClient) SubmitStatus(ctx context.Context, batchID string, status domain.Status) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFault(); err != nil {
		return "", err
	}
	e, exists := c.entries[batchID]
	if !exists {
		return "", domain.ErrNotFound
	}
	e.statuses = append(e.statuses, status)
	return c.nextTx(), nil
}

// QueryExistence 查询批次是否登记
func (c *MemoryClient) QueryExistence(ctx context.Context, batchID string) (*Existence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFault(); err != nil {
		return nil, err
	}
	e, exists := c.entries[batchID]
	if !exists {
		return &Existence{Exists: false}, nil
	}
	out := &Existence{Exists: true}
	if n := len(e.custodians); n > 0 {
		out.Custodian = e.custodians[n-1]
	}
	if n := len(e.statuses); n > 0 {
		out.Status = e.statuses[n-1]
	}
	return out, nil
}

// QueryHistory 查询持有链与状态历史
func (c *MemoryClient) QueryHistory(ctx context.Context, batchID string) (*History, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFault(); err != nil {
		return nil, err
	}
	e, exists := c.entries[batchID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	h := &History{
		Custodians: append([]string(nil), e.custodians...),
		Statuses:   append([]domain.Status(nil), e.statuses...),
	}
	return h, nil
}

// Configured 是否已配置外部账本
func (c *MemoryClient) Configured() bool { return true }

var _ Client = (*MemoryClient)(nil)
