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
	"fmt"
	"time"

	"agritrace/pkg/config"
	"agritrace/pkg/utils"
)

// NewClient 根据配置创建外部账本客户端。Endpoint 或 PrivateKey 缺失时
// 返回 Unconfigured，服务以 store-only 模式运行。
func NewClient(cfg config.LedgerConfig) (Client, error) {
	switch cfg.Type {
	case "":
		return Unconfigured{}, nil
	case "memory":
		return NewMemoryClient(), nil
	case "gateway":
		if cfg.Endpoint == "" || cfg.PrivateKey == "" {
			return Unconfigured{}, nil
		}
		timeout := utils.ParseDuration(cfg.Timeout, 15*time.Second)
		return NewGatewayClient(cfg.Endpoint, cfg.PrivateKey, cfg.ContractAddress, timeout), nil
	default:
		return nil, fmt.Errorf("不支持的账本类型: %s", cfg.Type)
	}
}
