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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"agritrace/internal/domain"
	"agritrace/pkg/metrics"
)

// GatewayClient 通过链上网关服务锚定批次。网关封装私钥签名与合约调用，
// 本服务只走 REST 接口，网关不可达或超时一律映射为 ErrLedgerUnavailable。
type GatewayClient struct {
	endpoint string
	contract string
	client   *resty.Client
}

// NewGatewayClient 创建链上网关客户端
func NewGatewayClient(endpoint, privateKey, contract string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(3 * time.Second)
	if privateKey != "" {
		client.SetHeader("Authorization", "Bearer "+privateKey)
	}

	return &GatewayClient{
		endpoint: endpoint,
		contract: contract,
		client:   client,
	}
}

// Configured 是否已配置外部账本
func (c *GatewayClient) Configured() bool {
	return true
}

// txResponse 网关提交类接口的统一响应
type txResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

func (c *GatewayClient) observe(op string, start time.Time, err error) {
	metrics.LedgerCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LedgerCallErrors.WithLabelValues(op).Inc()
	}
}

// submit 发送提交类请求并解析交易哈希
func (c *GatewayClient) submit(ctx context.Context, op, path string, body interface{}) (txHash string, err error) {
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Contract-Address", c.contract).
		SetBody(body).
		Post(c.endpoint + path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return "", domain.ErrAlreadyAnchored
	default:
		return "", fmt.Errorf("%w: 网关返回 %d: %s", domain.ErrLedgerUnavailable, resp.StatusCode(), resp.String())
	}

	var result txResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("%w: 解析网关响应失败: %v", domain.ErrLedgerUnavailable, err)
	}
	if result.TxHash == "" {
		return "", fmt.Errorf("%w: 网关未返回交易哈希", domain.ErrLedgerUnavailable)
	}
	return result.TxHash, nil
}

// SubmitBatch 登记批次，返回交易哈希
func (c *GatewayClient) SubmitBatch(ctx context.Context, b *domain.Batch) (string, error) {
	return c.submit(ctx, "submit_batch", "/chain/batches", map[string]interface{}{
		"batchId":      b.BatchID,
		"farmerId":     b.FarmerID,
		"cropType":     b.CropType,
		"quantity":     b.Quantity,
		"qualityGrade": b.QualityGrade,
		"harvestDate":  b.HarvestDate.Unix(),
	})
}

// SubmitTransfer 登记一次持有权转移
func (c *GatewayClient) SubmitTransfer(ctx context.Context, batchID, fromParty, toParty string) (string, error) {
	return c.submit(ctx, "submit_transfer", "/chain/batches/"+batchID+"/transfer", map[string]interface{}{
		"from": fromParty,
		"to":   toParty,
	})
}

// SubmitStatus 登记一次状态变更
func (c *GatewayClient) SubmitStatus(ctx context.Context, batchID string, status domain.Status) (string, error) {
	return c.submit(ctx, "submit_status", "/chain/batches/"+batchID+"/status", map[string]interface{}{
		"status": status,
	})
}

// QueryExistence 查询批次是否在链上登记。404 表示未登记，不算错误。
func (c *GatewayClient) QueryExistence(ctx context.Context, batchID string) (ex *Existence, err error) {
	start := time.Now()
	defer func() { c.observe("query", start, err) }()

	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.endpoint + "/chain/batches/" + batchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &Existence{Exists: false}, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: 网关返回 %d", domain.ErrLedgerUnavailable, resp.StatusCode())
	}

	var result struct {
		Custodian string        `json:"custodian"`
		Status    domain.Status `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: 解析网关响应失败: %v", domain.ErrLedgerUnavailable, err)
	}
	return &Existence{Exists: true, Custodian: result.Custodian, Status: result.Status}, nil
}

// QueryHistory 查询链上持有链与状态历史
func (c *GatewayClient) QueryHistory(ctx context.Context, batchID string) (h *History, err error) {
	start := time.Now()
	defer func() { c.observe("query", start, err) }()

	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.endpoint + "/chain/batches/" + batchID + "/history")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: 网关返回 %d", domain.ErrLedgerUnavailable, resp.StatusCode())
	}

	var result History
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: 解析网关响应失败: %v", domain.ErrLedgerUnavailable, err)
	}
	return &result, nil
}

var _ Client = (*GatewayClient)(nil)
