package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config file: %v", err)
	}
	return path
}

func TestLoadConfig_Success(t *testing.T) {
	tmpFile := writeConfig(t, t.TempDir(), `
logdest: "/var/log/idxagent"
loglevel: "debug"
heartbeat: 30
indexer:
  command: "python3"
  script: "/opt/indexer/auto_index.py"
watch:
  backend: "poll"
  settle_ms: 250
dispatch:
  workers: 2
  overflow: "drop-oldest"
  wait_for_exit: false
skip:
  folders: ["node_modules"]
  patterns: ["~$"]
`)

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadConfig returned an error: %v", err)
	}

	if cfg.LogFile != "/var/log/idxagent" {
		t.Errorf("Expected LogFile to be /var/log/idxagent, got %s", cfg.LogFile)
	}
	if cfg.IndexerCommand() != "python3" || cfg.Indexer.Script != "/opt/indexer/auto_index.py" {
		t.Errorf("unexpected indexer config: %+v", cfg.Indexer)
	}
	if cfg.Settle() != 250*time.Millisecond {
		t.Errorf("Settle() = %v", cfg.Settle())
	}
	if cfg.MaxSettle() != 2*time.Second {
		t.Errorf("MaxSettle() should default to 2s, got %v", cfg.MaxSettle())
	}
	if cfg.Workers() != 2 || cfg.QueueSize() != defaultQueueSize || cfg.WaitForExit() {
		t.Errorf("unexpected dispatch config: workers=%d queue=%d wait=%v", cfg.Workers(), cfg.QueueSize(), cfg.WaitForExit())
	}
	if cfg.HeartbeatInterval() != 30*time.Second {
		t.Errorf("HeartbeatInterval() = %v", cfg.HeartbeatInterval())
	}
	rules := cfg.Rules()
	if f := rules.Folders(); len(f) != 1 || f[0] != "node_modules" {
		t.Errorf("unexpected folder rules: %v", f)
	}
	if err := ValidateConfig(&cfg); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), "loglevel: info\n"))
	if err != nil {
		t.Fatalf("LoadConfig returned an error: %v", err)
	}

	if cfg.IndexerCommand() != "python" || cfg.Indexer.Script != "auto_index.py" {
		t.Errorf("unexpected indexer defaults: %q %q", cfg.IndexerCommand(), cfg.Indexer.Script)
	}
	if cfg.Watch.Backend != "auto" || cfg.Settle() != 100*time.Millisecond || cfg.PollInterval() != time.Second {
		t.Errorf("unexpected watch defaults: %+v", cfg.Watch)
	}
	if cfg.Workers() != 4 || cfg.QueueSize() != 256 || cfg.Dispatch.Overflow != "block" || !cfg.WaitForExit() {
		t.Errorf("unexpected dispatch defaults: %+v", cfg.Dispatch)
	}
	if len(cfg.Skip.Folders) != len(DefaultSkipFolders) || len(cfg.Skip.Patterns) != len(DefaultSkipPatterns) {
		t.Errorf("expected default skip lists")
	}
}

func TestLoadConfig_EmptyCommandRunsScriptDirectly(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), "indexer:\n  command: \"\"\n  script: index.exe\n"))
	if err != nil {
		t.Fatalf("LoadConfig returned an error: %v", err)
	}
	if cfg.IndexerCommand() != "" {
		t.Errorf("expected empty command to be kept, got %q", cfg.IndexerCommand())
	}
}

func TestLoadConfig_EmptySkipListsAreKept(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, t.TempDir(), "skip:\n  folders: []\n  patterns: []\n"))
	if err != nil {
		t.Fatalf("LoadConfig returned an error: %v", err)
	}
	if len(cfg.Skip.Folders) != 0 || len(cfg.Skip.Patterns) != 0 {
		t.Errorf("explicitly empty skip lists should not be replaced by defaults: %+v", cfg.Skip)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, t.TempDir(), "watch: [unclosed\n")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestSetDefaults_LogsDefaults(t *testing.T) {
	var logBuf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	var cfg ConfigData
	cfg.SetDefaults()

	if !strings.Contains(logBuf.String(), "settle_ms not set") {
		t.Errorf("expected defaulting to be logged, got: %s", logBuf.String())
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()
	off := false
	cfg.ApplyFlags(FlagOptions{LogFile: "/tmp/x.log", LogLevel: "warn", LogToConsole: &off, Backend: "poll"})

	if cfg.LogFile != "/tmp/x.log" || cfg.LogLevel != "warn" || cfg.LogToConsole || cfg.Watch.Backend != "poll" {
		t.Errorf("flags not applied: %+v", cfg)
	}

	before := cfg
	cfg.ApplyFlags(FlagOptions{})
	if cfg.LogFile != before.LogFile || cfg.LogLevel != before.LogLevel || cfg.Watch.Backend != before.Watch.Backend {
		t.Error("empty flags should not change the config")
	}
}

func TestGetConfigFile(t *testing.T) {
	dir := t.TempDir()
	orig := executable
	executable = func() (string, error) { return filepath.Join(dir, "idxagent"), nil }
	defer func() { executable = orig }()

	t.Setenv("ProgramData", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AppData", t.TempDir())

	got, err := GetConfigFile("")
	if err != nil || got != "" {
		t.Fatalf("expected no config file, got %q, %v", got, err)
	}

	sibling := writeConfig(t, dir, "loglevel: info\n")
	got, err = GetConfigFile("")
	if err != nil || got != sibling {
		t.Fatalf("GetConfigFile() = %q, %v; want %q", got, err, sibling)
	}

	explicit := writeConfig(t, t.TempDir(), "loglevel: debug\n")
	if got, _ := GetConfigFile(explicit); got != explicit {
		t.Errorf("explicit path not preferred, got %q", got)
	}
	if _, err := GetConfigFile(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoad_InvalidConfigIsFatal(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "loglevel: loud\ndispatch:\n  workers: 0\n")
	_, _, err := Load(FlagOptions{ConfigFile: path})
	if err == nil {
		t.Fatal("expected invalid configuration error")
	}
	for _, want := range []string{"invalid configuration", "loglevel", "dispatch.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintConfig(&buf, DefaultConfig()); err != nil {
		t.Fatalf("PrintConfig failed: %v", err)
	}

	var back ConfigData
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("printed config is not valid YAML: %v\n%s", err, buf.String())
	}
	if back.Indexer.Script != "auto_index.py" || back.Workers() != 4 {
		t.Errorf("printed config lost values:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "node_modules") {
		t.Errorf("expected skip rules in output:\n%s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	dest := filepath.Join(t.TempDir(), "logs", "agent.log")
	f, err := SetupLogger(ConfigData{LogFile: dest, LogLevel: "info"})
	if err != nil {
		t.Fatalf("SetupLogger failed: %v", err)
	}
	if f == nil {
		t.Fatal("expected a log file")
	}
	defer f.Close()

	slog.Info("hello from test")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log line not written: %s", data)
	}
}

func TestSetupLogger_Console(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	f, err := SetupLogger(ConfigData{LogFile: "/ignored", LogToConsole: true})
	if err != nil || f != nil {
		t.Fatalf("expected console logging, got %v, %v", f, err)
	}
}
