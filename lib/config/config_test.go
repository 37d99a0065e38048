// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/actormesh/lib/provenance"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Vat.MailboxCapacity != 8 {
		t.Errorf("expected mailbox_capacity=8, got %d", cfg.Vat.MailboxCapacity)
	}
	if !cfg.Vat.RootTrap {
		t.Error("expected root_trap=true")
	}
	if cfg.Join.Anonymous {
		t.Error("expected anonymous joins to be disabled by default")
	}
	if cfg.Join.HandshakeTimeout != 10*time.Second {
		t.Errorf("expected handshake_timeout=10s, got %s", cfg.Join.HandshakeTimeout)
	}
	if cfg.Compression() != provenance.CompressionZstd {
		t.Errorf("expected zstd journal, got %s", cfg.Compression())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when ACTORMESH_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), EnvironmentVariable+" environment variable not set") {
		t.Errorf("unexpected error %q", err)
	}
}

func TestLoad_WithEnvironment(t *testing.T) {
	path := writeConfig(t, "vat.yaml", "listen: 127.0.0.1:9999\nstate_dir: /test/state\n")
	t.Setenv(EnvironmentVariable, path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Errorf("expected listen=127.0.0.1:9999, got %s", cfg.Listen)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, "vat.yaml", `
listen: 0.0.0.0:7000
state_dir: /srv/vat

vat:
  mailbox_capacity: 32
  call_timeout: 5s
  root_trap: false

join:
  anonymous: true
  handshake_timeout: 3s
  rate: 0.5
  burst: 2

provenance:
  journal: facts.journal
  compression: lz4

log:
  level: debug
  format: json
  file: /var/log/vat.log
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Vat.MailboxCapacity != 32 {
		t.Errorf("expected mailbox_capacity=32, got %d", cfg.Vat.MailboxCapacity)
	}
	if cfg.Vat.CallTimeout != 5*time.Second {
		t.Errorf("expected call_timeout=5s, got %s", cfg.Vat.CallTimeout)
	}
	if cfg.Vat.RootTrap {
		t.Error("expected root_trap=false")
	}
	if !cfg.Join.Anonymous || cfg.Join.HandshakeTimeout != 3*time.Second {
		t.Errorf("join = %+v", cfg.Join)
	}
	if cfg.Join.Rate != 0.5 || cfg.Join.Burst != 2 {
		t.Errorf("expected rate=0.5 burst=2, got %g %d", cfg.Join.Rate, cfg.Join.Burst)
	}
	// Relative paths resolve against the state directory.
	if cfg.Provenance.Journal != "/srv/vat/facts.journal" {
		t.Errorf("expected journal=/srv/vat/facts.journal, got %s", cfg.Provenance.Journal)
	}
	if cfg.Compression() != provenance.CompressionLZ4 {
		t.Errorf("expected lz4, got %s", cfg.Compression())
	}
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, %v", level, err)
	}
	if cfg.Log.File != "/var/log/vat.log" {
		t.Errorf("expected log file /var/log/vat.log, got %s", cfg.Log.File)
	}
	// Fields the file leaves out keep their defaults.
	if cfg.Join.MaxFrameSize != 1<<20 {
		t.Errorf("expected default max_frame_size, got %d", cfg.Join.MaxFrameSize)
	}
}

func TestLoadFileJSONC(t *testing.T) {
	path := writeConfig(t, "vat.jsonc", `{
  // Local development vat.
  "listen": "127.0.0.1:7100",
  "state_dir": "/tmp/vat",
  "join": {
    "anonymous": true,
    "handshake_timeout": "2s", /* short for tests */
  },
  "provenance": {"compression": "none"},
}`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7100" {
		t.Errorf("expected listen=127.0.0.1:7100, got %s", cfg.Listen)
	}
	if !cfg.Join.Anonymous || cfg.Join.HandshakeTimeout != 2*time.Second {
		t.Errorf("join = %+v", cfg.Join)
	}
	if cfg.Compression() != provenance.CompressionNone {
		t.Errorf("expected no compression, got %s", cfg.Compression())
	}
	if cfg.Provenance.Journal != "/tmp/vat/provenance.journal" {
		t.Errorf("expected default journal under state dir, got %s", cfg.Provenance.Journal)
	}
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "vat.yaml", "listen: :7000\nlistne: typo\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "vat.yaml", "vat:\n  mailbox_capacity: 0\n")
	_, err := LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "mailbox_capacity") {
		t.Fatalf("LoadFile = %v, want mailbox_capacity error", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStateDirExpansion(t *testing.T) {
	t.Setenv("VAT_HOME", "/opt/vat")
	path := writeConfig(t, "vat.yaml", "state_dir: ${VAT_HOME}/state\nkey:\n  sealing_identity_file: ${STATE_DIR}/age.key\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.StateDir != "/opt/vat/state" {
		t.Errorf("expected state_dir=/opt/vat/state, got %s", cfg.StateDir)
	}
	if cfg.Key.SealingIdentityFile != "/opt/vat/state/age.key" {
		t.Errorf("expected sealing identity under state dir, got %s", cfg.Key.SealingIdentityFile)
	}
	if cfg.KeyDir() != "/opt/vat/state/key" {
		t.Errorf("KeyDir() = %s", cfg.KeyDir())
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/vat", map[string]string{"HOME": "/home/user"}, "/home/user/vat"},
		{"${ACTORMESH_TEST_MISSING:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"no variables here", map[string]string{}, "no variables here"},
	}
	for _, tt := range tests {
		if result := expandVars(tt.input, tt.vars); result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty state dir", func(c *Config) { c.StateDir = "" }},
		{"zero mailbox", func(c *Config) { c.Vat.MailboxCapacity = 0 }},
		{"negative call timeout", func(c *Config) { c.Vat.CallTimeout = -time.Second }},
		{"zero handshake timeout", func(c *Config) { c.Join.HandshakeTimeout = 0 }},
		{"negative rate", func(c *Config) { c.Join.Rate = -1 }},
		{"negative burst", func(c *Config) { c.Join.Burst = -1 }},
		{"tiny frames", func(c *Config) { c.Join.MaxFrameSize = 10 }},
		{"unknown compression", func(c *Config) { c.Provenance.Compression = "gzip" }},
		{"unknown level", func(c *Config) { c.Log.Level = "chatty" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() succeeded, want error")
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.StateDir = filepath.Join(root, "state")
	cfg.Provenance.Journal = filepath.Join(root, "journal", "facts")
	cfg.Log.File = filepath.Join(root, "logs", "vat.log")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}
	for _, path := range []string{cfg.StateDir, cfg.KeyDir(), filepath.Join(root, "journal"), filepath.Join(root, "logs")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	t.Setenv("HOME", "/home/tester")
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.StateDir != "/home/tester/.local/state/actormesh" {
		t.Errorf("expected expanded state dir, got %s", cfg.StateDir)
	}
	if cfg.Provenance.Journal != "/home/tester/.local/state/actormesh/provenance.journal" {
		t.Errorf("expected expanded journal, got %s", cfg.Provenance.Journal)
	}

	path := writeConfig(t, "vat.yaml", "listen: 127.0.0.1:1234\n")
	t.Setenv(EnvironmentVariable, path)
	cfg, err = LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault from environment: %v", err)
	}
	if cfg.Listen != "127.0.0.1:1234" {
		t.Errorf("expected listen from ACTORMESH_CONFIG, got %s", cfg.Listen)
	}
}
