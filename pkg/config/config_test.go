package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeLocal {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeLocal)
	}
	if cfg.BindAddr != "127.0.0.1:7331" {
		t.Errorf("BindAddr = %q, want 127.0.0.1:7331", cfg.BindAddr)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %q, want ./data", cfg.DataDir)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxion.yaml")
	content := "mode: worker\nbind_addr: 10.0.0.5:9000\nmaster: 10.0.0.1:7331\ntags:\n  - gpu\n  - fast\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != ModeWorker {
		t.Errorf("Mode = %q, want worker", cfg.Mode)
	}
	if cfg.BindAddr != "10.0.0.5:9000" {
		t.Errorf("BindAddr = %q, want 10.0.0.5:9000", cfg.BindAddr)
	}
	if cfg.Master != "10.0.0.1:7331" {
		t.Errorf("Master = %q, want 10.0.0.1:7331", cfg.Master)
	}
	if len(cfg.Tags) != 2 || cfg.Tags[0] != "gpu" || cfg.Tags[1] != "fast" {
		t.Errorf("Tags = %v, want [gpu fast]", cfg.Tags)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxion.yaml")
	if err := os.WriteFile(path, []byte("bind_addr: 10.0.0.5:9000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("FLUXION_BIND_ADDR", "10.0.0.9:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != "10.0.0.9:9999" {
		t.Errorf("BindAddr = %q, want env override 10.0.0.9:9999", cfg.BindAddr)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml")); err == nil {
		t.Error("Load() with a nonexistent file, want error")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxion.yaml")
	if err := os.WriteFile(path, []byte("mode: bogus\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with an unknown mode, want error")
	}
}

func TestLoadWorkerModeRequiresMaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxion.yaml")
	if err := os.WriteFile(path, []byte("mode: worker\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() for mode worker with no master, want error")
	}
}
