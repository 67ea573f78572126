package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nanoncore/nano-onulocator/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onulocator.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Vendor != "zte" || cfg.Protocol != "telnet" || cfg.Port != 23 || cfg.Concurrency != 20 {
		t.Errorf("fleet defaults = %s/%s/%d/%d", cfg.Vendor, cfg.Protocol, cfg.Port, cfg.Concurrency)
	}
	if cfg.Timeouts != types.DefaultTimeouts() {
		t.Errorf("Timeouts = %+v", cfg.Timeouts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_format: json
database: /tmp/olts.db
concurrency: 5
timeouts:
  login: 3s
  long_command: 30s
diagnostics:
  name:
    - key: detail
      pattern: 'Description:\s*(.+)'
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" || cfg.Database != "/tmp/olts.db" || cfg.Concurrency != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Timeouts.Login != 3*time.Second || cfg.Timeouts.LongCommand != 30*time.Second {
		t.Errorf("overridden timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Timeouts.Connect != 10*time.Second {
		t.Errorf("Connect = %v, want default", cfg.Timeouts.Connect)
	}
	if len(cfg.Diagnostics.Name) != 1 || cfg.Diagnostics.Name[0].Key != "detail" {
		t.Errorf("Diagnostics.Name = %+v", cfg.Diagnostics.Name)
	}
	if _, err := cfg.Extractor(); err != nil {
		t.Errorf("Extractor() error = %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "concurrency: 5\n")
	t.Setenv("ONULOCATOR_CONCURRENCY", "7")
	t.Setenv("ONULOCATOR_TIMEOUTS_SHELL", "9s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Concurrency != 7 {
		t.Errorf("Concurrency = %d, want 7", cfg.Concurrency)
	}
	if cfg.Timeouts.Shell != 9*time.Second {
		t.Errorf("Shell = %v, want 9s", cfg.Timeouts.Shell)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad format", "log_format: xml\n"},
		{"bad protocol", "protocol: snmp\n"},
		{"zero concurrency", "concurrency: 0\n"},
		{"bad port", "port: 70000\n"},
		{"bad rule", "diagnostics:\n  name:\n    - key: detail\n      pattern: '('\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err == nil {
				_, err = cfg.Extractor()
			}
			if err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing file")
	}
}
