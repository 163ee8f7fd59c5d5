package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKernelConfigMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKernelConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.QuotaLevel != "strict" {
		t.Errorf("QuotaLevel = %q, want strict", cfg.QuotaLevel)
	}
	if cfg.FuelQuantum != 100_000_000 {
		t.Errorf("FuelQuantum = %d, want 100000000", cfg.FuelQuantum)
	}
	if cfg.EndpointSoftCap != 256 {
		t.Errorf("EndpointSoftCap = %d, want 256", cfg.EndpointSoftCap)
	}
	if cfg.HashAlgorithm != "BLAKE2b-256" {
		t.Errorf("HashAlgorithm = %q, want BLAKE2b-256", cfg.HashAlgorithm)
	}
	if cfg.Host != "native" {
		t.Errorf("Host = %q, want native", cfg.Host)
	}
	if cfg.ConnectionMode != "relay" {
		t.Errorf("ConnectionMode = %q, want relay", cfg.ConnectionMode)
	}
	if cfg.DebugSocket != filepath.Join(dir, "kernel.sock") {
		t.Errorf("DebugSocket = %q, want rooted under %s", cfg.DebugSocket, dir)
	}
	if cfg.NativeBinDir != filepath.Join(dir, "bin") {
		t.Errorf("NativeBinDir = %q, want rooted under %s", cfg.NativeBinDir, dir)
	}
	if cfg.SnapshotPath != filepath.Join(dir, "kernel.db") {
		t.Errorf("SnapshotPath = %q, want rooted under %s", cfg.SnapshotPath, dir)
	}
}

func TestSaveLoadKernelConfigRoundtrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &KernelConfig{
		KernelID:       "kern-1",
		QuotaLevel:     "trusted",
		FuelQuantum:    50_000_000,
		Host:           "browser",
		ConnectionMode: "p2p",
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.example.com:3478"}},
		},
	}
	if err := SaveKernelConfig(dir, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "kernel.yaml")); err != nil {
		t.Fatalf("expected kernel.yaml to exist: %v", err)
	}

	loaded, err := LoadKernelConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.KernelID != "kern-1" {
		t.Errorf("KernelID = %q, want kern-1", loaded.KernelID)
	}
	if loaded.QuotaLevel != "trusted" {
		t.Errorf("QuotaLevel = %q, want trusted", loaded.QuotaLevel)
	}
	if loaded.FuelQuantum != 50_000_000 {
		t.Errorf("FuelQuantum = %d, want 50000000", loaded.FuelQuantum)
	}
	if loaded.Host != "browser" {
		t.Errorf("Host = %q, want browser", loaded.Host)
	}
	if len(loaded.ICEServers) != 1 || loaded.ICEServers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Errorf("ICEServers = %+v", loaded.ICEServers)
	}
	// Defaults still apply to fields the saved config left zero.
	if loaded.EndpointSoftCap != 256 {
		t.Errorf("EndpointSoftCap = %d, want 256", loaded.EndpointSoftCap)
	}
}
