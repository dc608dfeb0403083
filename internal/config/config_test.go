package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/btcamcp/internal/btca"
	"github.com/deixis/btcamcp/internal/runner"
)

// isolate points the user config directory at an empty temp dir so a
// developer's own config cannot leak into the tests.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(BinaryEnv, "")
}

func TestLoad_FromDirectory(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	data := "binary: /opt/btca\nconvention: flat\ntimeout: 10m\nmodel_wait: 2s\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q, want %q", res.Path, filepath.Join(dir, FileName))
	}
	cfg := res.Config
	if cfg.Binary() != "/opt/btca" {
		t.Errorf("Binary() = %q, want /opt/btca", cfg.Binary())
	}
	if cfg.Convention() != btca.FlatStyle {
		t.Errorf("Convention() = %q, want %q", cfg.Convention(), btca.FlatStyle)
	}
	if cfg.Timeout() != 10*time.Minute {
		t.Errorf("Timeout() = %s, want 10m", cfg.Timeout())
	}
	if cfg.ModelWait() != 2*time.Second {
		t.Errorf("ModelWait() = %s, want 2s", cfg.ModelWait())
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("binary: btca-dev\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "pkg", "foo")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Binary() != "btca-dev" {
		t.Errorf("Binary() = %q, want btca-dev", res.Config.Binary())
	}
}

func TestLoad_UserConfigDir(t *testing.T) {
	isolate(t)
	userDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", userDir)
	if err := os.MkdirAll(filepath.Join(userDir, "btcamcp"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(userDir, "btcamcp", "config.yaml"), []byte("convention: flat\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Config.Convention() != btca.FlatStyle {
		t.Errorf("Convention() = %q, want %q", res.Config.Convention(), btca.FlatStyle)
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)
	res, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want empty", res.Path)
	}
	cfg := res.Config
	if cfg.Binary() != DefaultBinary {
		t.Errorf("Binary() = %q, want %q", cfg.Binary(), DefaultBinary)
	}
	if cfg.Convention() != DefaultConvention {
		t.Errorf("Convention() = %q, want %q", cfg.Convention(), DefaultConvention)
	}
	if cfg.Timeout() != 0 {
		t.Errorf("Timeout() = %s, want 0", cfg.Timeout())
	}
	if cfg.ModelWait() != DefaultModelWait {
		t.Errorf("ModelWait() = %s, want %s", cfg.ModelWait(), DefaultModelWait)
	}
	if cfg.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes() = %d, want %d", cfg.MaxOutputBytes(), DefaultMaxOutput)
	}
}

func TestLoad_InvalidConvention(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("convention: nested\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for unknown convention")
	}
	for _, name := range []btca.Convention{btca.ConfigStyle, btca.FlatStyle} {
		if !strings.Contains(err.Error(), string(name)) {
			t.Errorf("error %q does not list convention %q", err, name)
		}
	}

	cfg := &Config{RawConvention: "nested"}
	if cfg.Convention() != DefaultConvention {
		t.Errorf("Convention() = %q, want default %q", cfg.Convention(), DefaultConvention)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("binary: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestBinary_EnvOverride(t *testing.T) {
	t.Setenv(BinaryEnv, "/usr/local/bin/btca")
	cfg := &Config{RawBinary: "btca-dev"}
	if cfg.Binary() != "/usr/local/bin/btca" {
		t.Errorf("Binary() = %q, want env override", cfg.Binary())
	}
}

func TestNewClient(t *testing.T) {
	isolate(t)
	cfg := &Config{RawBinary: "btca-dev", RawConvention: "flat", RawTimeout: "2m", RawModelWait: "1s"}

	c := cfg.NewClient("/work")
	r, ok := c.Runner.(*runner.Runner)
	if !ok {
		t.Fatalf("Runner is %T, want *runner.Runner", c.Runner)
	}
	if r.Binary != "btca-dev" || r.Dir != "/work" || r.Timeout != 2*time.Minute || r.MaxOutput != DefaultMaxOutput {
		t.Errorf("runner = %+v", r)
	}
	if c.Convention != btca.FlatStyle || c.ModelWait != time.Second {
		t.Errorf("client convention %q, model wait %s", c.Convention, c.ModelWait)
	}

	cfg.Dir = "/elsewhere"
	other := cfg.NewClient("/work")
	if got := other.Runner.(*runner.Runner).Dir; got != "/elsewhere" {
		t.Errorf("Dir = %q, want configured dir to win over workspace", got)
	}
	if other.Runner == c.Runner {
		t.Error("clients share a runner")
	}
}
