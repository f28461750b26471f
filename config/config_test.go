package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromYAMLAppliesFileThenOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vehicle.yaml")
	body := `
agv:
  manufacturer: Acme
  serialNumber: AGV-001
  supportedActions:
    - actionType: pick
      actionScopes: [NODE]
broker:
  address: tcp://broker.local:1883
spinnerCount: 2
queueCapacity: 128
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path, WithSpinnerCount(8), WithStateUpdatePeriod(500*time.Millisecond))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AGV.Manufacturer != "Acme" || cfg.AGV.SerialNumber != "AGV-001" {
		t.Fatalf("unexpected AGV identity: %+v", cfg.AGV)
	}
	if len(cfg.AGV.SupportedActions) != 1 || cfg.AGV.SupportedActions[0].ActionType != "pick" {
		t.Fatalf("unexpected supported actions: %+v", cfg.AGV.SupportedActions)
	}
	if cfg.SpinnerCount != 8 {
		t.Fatalf("expected option to override file value, got %d", cfg.SpinnerCount)
	}
	if cfg.StateUpdatePeriod != 500*time.Millisecond {
		t.Fatalf("expected option-set state update period, got %v", cfg.StateUpdatePeriod)
	}
	if cfg.Broker.Interface != "uagv" || cfg.Broker.Version != "v2" {
		t.Fatalf("expected broker defaults to survive a partial file, got %+v", cfg.Broker)
	}
}

func TestLoadWithNoPathUsesProgrammaticDefaults(t *testing.T) {
	cfg, err := Load("", func(b *Base) {
		b.AGV.Manufacturer = "Acme"
		b.AGV.SerialNumber = "AGV-002"
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SpinnerCount != 4 || cfg.QueueCapacity != 256 {
		t.Fatalf("expected built-in defaults, got %+v", cfg.Base)
	}
}

func TestLoadRejectsMissingIdentity(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected an error when agv identity is not set")
	}
}
