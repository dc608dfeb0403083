// Package config loads and validates the optional .btcamcp YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deixis/btcamcp/internal/btca"
	"github.com/deixis/btcamcp/internal/runner"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the project-level configuration file.
const FileName = ".btcamcp"

// Default values for runner configuration.
const (
	DefaultBinary     = "btca"
	DefaultConvention = btca.ConfigStyle
	DefaultModelWait  = 5 * time.Second
	DefaultMaxOutput  = 1 << 20 // 1 MB
)

// BinaryEnv overrides the configured binary when set.
const BinaryEnv = "BTCA_BIN"

// Config holds the parsed .btcamcp configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	RawBinary     string `yaml:"binary"`     // btca executable, resolved via PATH
	RawConvention string `yaml:"convention"` // config or flat
	RawTimeout    string `yaml:"timeout"`    // e.g. "10m"; empty means no limit
	RawModelWait  string `yaml:"model_wait"` // e.g. "5s"
	RawMaxOutput  int    `yaml:"max_output"` // bytes
	Dir           string `yaml:"dir"`        // working directory for btca
}

// Binary returns the btca executable to run. BTCA_BIN takes precedence.
func (c *Config) Binary() string {
	if v := os.Getenv(BinaryEnv); v != "" {
		return v
	}
	if c.RawBinary != "" {
		return c.RawBinary
	}
	return DefaultBinary
}

// Convention returns the configured argument convention or the default.
// An unknown name falls back to the default; Validate reports it.
func (c *Config) Convention() btca.Convention {
	if c.RawConvention == "" {
		return DefaultConvention
	}
	conv, err := btca.ParseConvention(c.RawConvention)
	if err != nil {
		return DefaultConvention
	}
	return conv
}

// Timeout returns the configured per-call limit, or zero for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// ModelWait returns how long a model change may run before it is assumed
// to have succeeded.
func (c *Config) ModelWait() time.Duration {
	if c.RawModelWait != "" {
		d, err := time.ParseDuration(c.RawModelWait)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultModelWait
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.RawConvention != "" {
		if _, err := btca.ParseConvention(c.RawConvention); err != nil {
			return fmt.Errorf("convention: %w", err)
		}
	}
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	if c.RawModelWait != "" {
		if _, err := time.ParseDuration(c.RawModelWait); err != nil {
			return fmt.Errorf("model_wait: %w", err)
		}
	}
	return nil
}

// NewClient returns a btca client that runs from workspace, or from Dir
// when it is set. The client is new on every call and shares nothing with
// clients built earlier.
func (c *Config) NewClient(workspace string) *btca.Client {
	dir := workspace
	if c.Dir != "" {
		dir = c.Dir
	}
	return &btca.Client{
		Runner: &runner.Runner{
			Binary:    c.Binary(),
			Dir:       dir,
			Timeout:   c.Timeout(),
			MaxOutput: c.MaxOutputBytes(),
		},
		Convention: c.Convention(),
		ModelWait:  c.ModelWait(),
	}
}

// LoadResult holds the parsed config and the file it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when defaults are in use
}

// Load finds and reads the configuration for workspace.
// It walks upward from workspace looking for a .btcamcp file, then tries
// the user config directory. If neither exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	path, err := findConfig(workspace)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &LoadResult{Config: &Config{}}, nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates the configuration at path.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// findConfig walks upward from dir looking for FileName, falling back to
// <user config dir>/btcamcp/config.yaml. It returns "" if nothing exists.
func findConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	userDir, err := os.UserConfigDir()
	if err != nil {
		// No $HOME or $XDG_CONFIG_HOME; defaults only.
		return "", nil
	}
	path := filepath.Join(userDir, "btcamcp", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("checking %s: %w", path, err)
	}
	return path, nil
}
