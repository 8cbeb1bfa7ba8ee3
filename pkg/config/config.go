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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// StorageConfig 存储配置
type StorageConfig struct {
	Store StoreConfig `mapstructure:"store"`
	Cache CacheConfig `mapstructure:"cache"`
}

// StoreConfig 账本主存储配置（批次/流转事件/质检报告）
type StoreConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type            string `mapstructure:"type"` // memory | redis
	Addr            string `mapstructure:"addr"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	AnalyticsTTL    string `mapstructure:"analytics_ttl"`    // 空则默认 5m
	VerificationTTL string `mapstructure:"verification_ttl"` // 空则默认 10m
}

// LedgerConfig 外部账本（链上锚定）配置；Endpoint 或 PrivateKey 为空时进入 store-only 模式
type LedgerConfig struct {
	Type            string `mapstructure:"type"` // gateway | memory | 空（未配置）
	Endpoint        string `mapstructure:"endpoint"`
	PrivateKey      string `mapstructure:"private_key"`
	ContractAddress string `mapstructure:"contract_address"`
	Timeout         string `mapstructure:"timeout"` // 单次提交超时，如 "15s"
}

// SyncConfig 对账同步配置（syncd 与批量 sync 接口共用）
type SyncConfig struct {
	Interval    string `mapstructure:"interval"`    // syncd 轮询间隔，如 "5m"
	Concurrency int    `mapstructure:"concurrency"` // 批量同步并发上限，<=0 使用默认 4
	BatchLimit  int    `mapstructure:"batch_limit"` // 单轮最多处理的未锚定批次数
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中 ${VAR} 形式的敏感项（账本私钥、存储 DSN）
func replaceEnvVars(config *Config) {
	config.Ledger.PrivateKey = expandEnv(config.Ledger.PrivateKey)
	config.Ledger.Endpoint = expandEnv(config.Ledger.Endpoint)
	config.Storage.Store.DSN = expandEnv(config.Storage.Store.DSN)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
}

func expandEnv(v string) string {
	if !strings.HasPrefix(v, "$") {
		return v
	}
	envVar := strings.TrimPrefix(strings.TrimSuffix(v, "}"), "${")
	envVar = strings.TrimPrefix(envVar, "$")
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadSyncdConfig 加载对账进程配置（仅 configs/syncd.yaml）
func LoadSyncdConfig() (*Config, error) {
	return LoadConfig("configs/syncd.yaml")
}
