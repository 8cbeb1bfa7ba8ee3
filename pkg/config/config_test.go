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
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
ledger:
  type: "gateway"
  endpoint: "http://localhost:8545"
  timeout: "15s"
storage:
  store:
    type: "memory"
  cache:
    type: "memory"
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.Ledger.Endpoint != "http://localhost:8545" {
		t.Errorf("Ledger.Endpoint: got %q", cfg.Ledger.Endpoint)
	}
	if cfg.Storage.Store.Type != "memory" {
		t.Errorf("Storage.Store.Type: got %q", cfg.Storage.Store.Type)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	yaml := `
ledger:
  type: "gateway"
  endpoint: "http://localhost:8545"
  private_key: "${AGRITRACE_LEDGER_KEY}"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("AGRITRACE_LEDGER_KEY", "0xdeadbeef")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Ledger.PrivateKey != "0xdeadbeef" {
		t.Errorf("Ledger.PrivateKey: got %q", cfg.Ledger.PrivateKey)
	}
}
