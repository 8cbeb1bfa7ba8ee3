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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("AGRITRACE_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// newClient 携带请求头身份（仅开发模式生效；生产环境走 JWT）
func newClient() *resty.Client {
	actor := os.Getenv("AGRITRACE_ACTOR")
	if actor == "" {
		actor = "cli"
	}
	role := os.Getenv("AGRITRACE_ROLE")
	if role == "" {
		role = "admin"
	}
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Actor-ID", actor).
		SetHeader("X-Actor-Role", role)
}

func getBatch(batchID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/batches/" + batchID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/batches/%s: %s", batchID, resp.String())
	}
	return out, nil
}

func listBatches(status string) (map[string]interface{}, error) {
	var out map[string]interface{}
	req := newClient().R().SetResult(&out)
	if status != "" {
		req.SetQueryParam("status", status)
	}
	resp, err := req.Get("/api/batches/")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/batches: %s", resp.String())
	}
	return out, nil
}

func verifyBatch(batchID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/ledger/verify/" + batchID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/ledger/verify/%s: %s", batchID, resp.String())
	}
	return out, nil
}

func batchHistory(batchID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/ledger/history/" + batchID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/ledger/history/%s: %s", batchID, resp.String())
	}
	return out, nil
}

func runSync(limit int) (map[string]interface{}, error) {
	var out map[string]interface{}
	req := newClient().R().SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	resp, err := req.Post("/api/ledger/sync")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/ledger/sync: %s", resp.String())
	}
	return out, nil
}

func analyticsOverview() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/analytics/overview")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/analytics/overview: %s", resp.String())
	}
	return out, nil
}

func clearCache() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Post("/api/admin/cache/clear")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/admin/cache/clear: %s", resp.String())
	}
	return out, nil
}

func apiHealth() (map[string]interface{}, error) {
	var out map[string]interface{}
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/health")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/health: %s", resp.String())
	}
	return out, nil
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
