package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petuumclient.yaml")
	contents := `
cluster:
  client_id: 2
  num_total_clients: 3
  server_ids: [0]
  local_id_min: 0
  local_id_max: 100
threads:
  num_local_app_threads: 4
  num_local_bg_threads: 2
consistency:
  consistency_model: SSP
  aggressive_clock: true
tables:
  weights:
    table_id: 0
    staleness: 2
    num_columns: 8
    capacity: 1024
    lock_stripes: 128
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cluster.ClientID != 2 {
		t.Errorf("Cluster.ClientID = %d, want 2", cfg.Cluster.ClientID)
	}
	if !cfg.Consistency.AggressiveClock {
		t.Error("Consistency.AggressiveClock = false, want true")
	}
	table, ok := cfg.Tables["weights"]
	if !ok {
		t.Fatal(`Tables["weights"] missing`)
	}
	if table.Staleness != 2 {
		t.Errorf("Tables[weights].Staleness = %d, want 2", table.Staleness)
	}
}

func TestValidate_RejectsMissingServerIDs(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cluster.ServerIDs = nil

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() error = nil, want error for empty ServerIDs")
	}
}

func TestValidate_RejectsInvertedIDRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cluster.LocalIDMin = 100
	cfg.Cluster.LocalIDMax = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() error = nil, want error for local_id_max < local_id_min")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.yaml")
	cfg := GetDefaultConfig()
	cfg.Cluster.ClientID = 7

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Cluster.ClientID != 7 {
		t.Errorf("round-tripped Cluster.ClientID = %d, want 7", loaded.Cluster.ClientID)
	}
}
