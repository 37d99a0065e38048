// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/actormesh/lib/provenance"
)

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "ACTORMESH_CONFIG"

// Config is the configuration for one vat process.
type Config struct {
	// Listen is the TCP address of the join endpoint.
	// Default: 127.0.0.1:7891
	Listen string `yaml:"listen"`

	// StateDir holds the vat's key and, by default, its journal.
	// Default: ${HOME}/.local/state/actormesh
	StateDir string `yaml:"state_dir"`

	Vat        VatConfig        `yaml:"vat"`
	Join       JoinConfig       `yaml:"join"`
	Provenance ProvenanceConfig `yaml:"provenance"`
	Log        LogConfig        `yaml:"log"`
	Key        KeyConfig        `yaml:"key"`
}

// VatConfig configures the actor directory.
type VatConfig struct {
	// MailboxCapacity is the default mailbox size. Default: 8
	MailboxCapacity int `yaml:"mailbox_capacity"`

	// CallTimeout bounds every call. Zero disables the bound.
	// Default: 30s
	CallTimeout time.Duration `yaml:"call_timeout"`

	// RootTrap keeps the vat running when a top-level actor fails.
	// Default: true
	RootTrap bool `yaml:"root_trap"`
}

// JoinConfig configures the peer join endpoint.
type JoinConfig struct {
	// Anonymous enables joins without a key. Default: false
	Anonymous bool `yaml:"anonymous"`

	// HandshakeTimeout bounds each handshake. Default: 10s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// Rate is the sustained join attempts per second. Zero disables the
	// limit. Default: 5
	Rate float64 `yaml:"rate"`

	// Burst is the attempts allowed above Rate. Default: 10
	Burst int `yaml:"burst"`

	// MaxFrameSize bounds incoming frames in bytes. Default: 1 MiB
	MaxFrameSize int64 `yaml:"max_frame_size"`
}

// ProvenanceConfig configures lifecycle fact recording.
type ProvenanceConfig struct {
	// Journal is the append-only fact file. Empty disables the journal.
	// Default: ${STATE_DIR}/provenance.journal
	Journal string `yaml:"journal"`

	// Compression is "none", "lz4", or "zstd". Default: zstd
	Compression string `yaml:"compression"`

	// Log also writes every fact to the process log at debug level.
	Log bool `yaml:"log"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// Format is "json", "text", or "auto" (text on a terminal, JSON
	// otherwise). Default: auto
	Format string `yaml:"format"`

	// File, when set, receives a JSON copy of every record.
	File string `yaml:"file"`
}

// KeyConfig configures the vat's keypair at rest.
type KeyConfig struct {
	// SealingIdentityFile is an age X25519 identity file. When set, the
	// private key is stored encrypted to it.
	SealingIdentityFile string `yaml:"sealing_identity_file"`
}

// Default returns the configuration used beneath every loaded file.
func Default() *Config {
	return &Config{
		Listen:   "127.0.0.1:7891",
		StateDir: "${HOME}/.local/state/actormesh",
		Vat: VatConfig{
			MailboxCapacity: 8,
			CallTimeout:     30 * time.Second,
			RootTrap:        true,
		},
		Join: JoinConfig{
			HandshakeTimeout: 10 * time.Second,
			Rate:             5,
			Burst:            10,
			MaxFrameSize:     1 << 20,
		},
		Provenance: ProvenanceConfig{
			Journal:     "${STATE_DIR}/provenance.journal",
			Compression: provenance.CompressionZstd.String(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by ACTORMESH_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your vat config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults, expands path variables, and
// validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.parse(path, data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or ACTORMESH_CONFIG when path is empty.
// With neither set it returns the expanded defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path != "" {
		return LoadFile(path)
	}
	cfg := Default()
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	return cfg, nil
}

// parse decodes data into c. JSON is a subset of YAML, so JSONC input
// is stripped to JSON and decoded by the same YAML decoder, keeping a
// single set of field tags.
func (c *Config) parse(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// expandVariables expands ${VAR} patterns in path fields and resolves
// relative paths against the state directory.
func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.StateDir = expandVars(c.StateDir, vars)
	vars["STATE_DIR"] = c.StateDir

	c.Provenance.Journal = c.resolve(expandVars(c.Provenance.Journal, vars))
	c.Log.File = c.resolve(expandVars(c.Log.File, vars))
	c.Key.SealingIdentityFile = c.resolve(expandVars(c.Key.SealingIdentityFile, vars))
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.StateDir, path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars take precedence
// over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if c.Vat.MailboxCapacity < 1 {
		errs = append(errs, fmt.Errorf("vat.mailbox_capacity must be at least 1, got %d", c.Vat.MailboxCapacity))
	}
	if c.Vat.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("vat.call_timeout must not be negative, got %s", c.Vat.CallTimeout))
	}
	if c.Join.HandshakeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("join.handshake_timeout must be positive, got %s", c.Join.HandshakeTimeout))
	}
	if c.Join.Rate < 0 {
		errs = append(errs, fmt.Errorf("join.rate must not be negative, got %g", c.Join.Rate))
	}
	if c.Join.Burst < 0 {
		errs = append(errs, fmt.Errorf("join.burst must not be negative, got %d", c.Join.Burst))
	}
	if c.Join.MaxFrameSize < 1024 {
		errs = append(errs, fmt.Errorf("join.max_frame_size must be at least 1024, got %d", c.Join.MaxFrameSize))
	}
	if _, err := provenance.ParseCompression(c.Provenance.Compression); err != nil {
		errs = append(errs, fmt.Errorf("provenance.compression: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "auto", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of auto, json, text; got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return level, nil
}

// Compression parses Provenance.Compression.
func (c *Config) Compression() provenance.Compression {
	compression, _ := provenance.ParseCompression(c.Provenance.Compression)
	return compression
}

// KeyDir is where the vat keypair is stored.
func (c *Config) KeyDir() string {
	return filepath.Join(c.StateDir, "key")
}

// EnsurePaths creates the state and key directories and the parents
// of the journal and log file.
func (c *Config) EnsurePaths() error {
	paths := []string{c.StateDir, c.KeyDir()}
	for _, file := range []string{c.Provenance.Journal, c.Log.File} {
		if file != "" {
			paths = append(paths, filepath.Dir(file))
		}
	}
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
