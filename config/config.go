package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/basilbenny1002/idxagent/filter"
	"github.com/basilbenny1002/idxagent/logdata"
)

// AppName is used for the service name and the per-machine config folder.
const AppName = "idxagent"

const (
	defaultCommand        = "python"
	defaultScript         = "auto_index.py"
	defaultBackend        = "auto"
	defaultSettleMs       = 100
	defaultMaxSettleMs    = 2000
	defaultPollIntervalMs = 1000
	defaultWorkers        = 4
	defaultQueueSize      = 256
	defaultOverflow       = "block"
	defaultWaitForExit    = true
)

// DefaultSkipFolders are whole path segments that never reach the indexer.
var DefaultSkipFolders = []string{
	"$recycle.bin", "system volume information", "config.msi", "windows.old",
	"$winreagent", "$getcurrent", "$sysreset", "$av_asw$", "found.000",
	"appdata", "windows", "programdata", "program files", "program files (x86)",
	"node_modules", "__pycache__", ".git", ".vscode", ".idea", "venv", ".venv",
}

// DefaultSkipPatterns match anywhere in a path.
var DefaultSkipPatterns = []string{
	"temp", "tmp", "cache", "__pycache__", "node_modules", "pkg", ".vscode",
}

type ConfigData struct {
	LogFile      string         `yaml:"logdest"`
	LogLevel     string         `yaml:"loglevel"`
	LogToConsole bool           `yaml:"logtoconsole"`
	Heartbeat    int            `yaml:"heartbeat"`
	Indexer      IndexerConfig  `yaml:"indexer"`
	Watch        WatchConfig    `yaml:"watch"`
	Dispatch     DispatchConfig `yaml:"dispatch"`
	Skip         SkipConfig     `yaml:"skip"`
}

type IndexerConfig struct {
	// Command is the interpreter. An explicit empty string runs the script
	// directly.
	Command *string `yaml:"command"`
	Script  string  `yaml:"script"`
}

type WatchConfig struct {
	Backend        string   `yaml:"backend"`
	Roots          []string `yaml:"roots"`
	SettleMs       *int     `yaml:"settle_ms"`
	MaxSettleMs    *int     `yaml:"max_settle_ms"`
	PollIntervalMs *int     `yaml:"poll_interval_ms"`
}

type DispatchConfig struct {
	Workers     *int   `yaml:"workers"`
	QueueSize   *int   `yaml:"queue_size"`
	Overflow    string `yaml:"overflow"`
	WaitForExit *bool  `yaml:"wait_for_exit"`
}

type SkipConfig struct {
	Folders  []string `yaml:"folders"`
	Patterns []string `yaml:"patterns"`
}

// FlagOptions are command line overrides. Empty values leave the config
// untouched.
type FlagOptions struct {
	ConfigFile   string
	LogFile      string
	LogLevel     string
	LogToConsole *bool
	Backend      string
}

// DefaultConfig is the configuration used when no config file exists.
func DefaultConfig() ConfigData {
	cfg := ConfigData{LogToConsole: true}
	cfg.SetDefaults()
	return cfg
}

func (c *ConfigData) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Indexer.Command == nil {
		slog.Debug("Indexer command not set. Default is " + defaultCommand)
		c.Indexer.Command = ptr(defaultCommand)
	}
	if c.Indexer.Script == "" {
		slog.Debug("Indexer script not set. Default is " + defaultScript)
		c.Indexer.Script = defaultScript
	}
	if c.Watch.Backend == "" {
		c.Watch.Backend = defaultBackend
	}
	setInt(&c.Watch.SettleMs, "settle_ms", defaultSettleMs)
	setInt(&c.Watch.MaxSettleMs, "max_settle_ms", defaultMaxSettleMs)
	setInt(&c.Watch.PollIntervalMs, "poll_interval_ms", defaultPollIntervalMs)
	setInt(&c.Dispatch.Workers, "workers", defaultWorkers)
	setInt(&c.Dispatch.QueueSize, "queue_size", defaultQueueSize)
	if c.Dispatch.Overflow == "" {
		c.Dispatch.Overflow = defaultOverflow
	}
	if c.Dispatch.WaitForExit == nil {
		slog.Debug("wait_for_exit not set. Default is " + strconv.FormatBool(defaultWaitForExit))
		c.Dispatch.WaitForExit = ptr(defaultWaitForExit)
	}
	if c.Skip.Folders == nil {
		c.Skip.Folders = append([]string(nil), DefaultSkipFolders...)
	}
	if c.Skip.Patterns == nil {
		c.Skip.Patterns = append([]string(nil), DefaultSkipPatterns...)
	}
}

func setInt(field **int, name string, def int) {
	if *field == nil {
		slog.Debug(name + " not set. Default is " + strconv.Itoa(def))
		*field = ptr(def)
	}
}

func ptr[T any](v T) *T { return &v }

// ApplyFlags overrides config values with the ones given on the command line.
func (c *ConfigData) ApplyFlags(flags FlagOptions) {
	if flags.LogFile != "" {
		c.LogFile = flags.LogFile
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.LogToConsole != nil {
		c.LogToConsole = *flags.LogToConsole
	}
	if flags.Backend != "" {
		c.Watch.Backend = flags.Backend
	}
}

func (c *ConfigData) Settle() time.Duration {
	return time.Duration(deref(c.Watch.SettleMs, defaultSettleMs)) * time.Millisecond
}

func (c *ConfigData) MaxSettle() time.Duration {
	return time.Duration(deref(c.Watch.MaxSettleMs, defaultMaxSettleMs)) * time.Millisecond
}

func (c *ConfigData) PollInterval() time.Duration {
	return time.Duration(deref(c.Watch.PollIntervalMs, defaultPollIntervalMs)) * time.Millisecond
}

func (c *ConfigData) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat) * time.Second
}

func (c *ConfigData) Workers() int   { return deref(c.Dispatch.Workers, defaultWorkers) }
func (c *ConfigData) QueueSize() int { return deref(c.Dispatch.QueueSize, defaultQueueSize) }

func (c *ConfigData) WaitForExit() bool {
	return deref(c.Dispatch.WaitForExit, defaultWaitForExit)
}

func (c *ConfigData) IndexerCommand() string {
	return deref(c.Indexer.Command, defaultCommand)
}

// Rules builds the immutable skip rule set.
func (c *ConfigData) Rules() filter.RuleSet {
	return filter.NewRuleSet(c.Skip.Folders, c.Skip.Patterns)
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func LoadConfig(configFile string) (ConfigData, error) {

	// Read yaml config into ConfigData
	yamlConfig, err := os.ReadFile(configFile)
	if err != nil {
		return ConfigData{}, fmt.Errorf("can't read configuration file: %w", err)
	}

	var cfg ConfigData
	if err := yaml.Unmarshal(yamlConfig, &cfg); err != nil {
		return ConfigData{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.SetDefaults()

	return cfg, nil
}

// executable is swapped in tests.
var executable = os.Executable

// GetConfigFile returns the config file to load. An explicit path must
// exist. Otherwise config.yaml next to the binary is preferred over the
// per-machine location. An empty result means no file was found.
func GetConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	for _, candidate := range configCandidates() {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

func configCandidates() []string {
	var out []string
	if exe, err := executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), "config.yaml"))
	}

	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			out = append(out, filepath.Join(pd, AppName, "config.yaml"))
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		out = append(out, filepath.Join(dir, AppName, "config.yaml"))
	}
	return out
}

// Load finds, reads and validates the configuration and applies flag
// overrides. It returns the path that was loaded, or "" for defaults.
func Load(flags FlagOptions) (ConfigData, string, error) {
	configFile, err := GetConfigFile(flags.ConfigFile)
	if err != nil {
		return ConfigData{}, "", err
	}

	cfg := DefaultConfig()
	if configFile != "" {
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return ConfigData{}, configFile, err
		}
	}
	cfg.ApplyFlags(flags)

	if err := ValidateConfig(&cfg); err != nil {
		return ConfigData{}, configFile, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, configFile, nil
}

func PrintConfig(w io.Writer, cfg ConfigData) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// ParseLevel converts a log level name to a slog.Level. Unknown names map
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs the default slog logger. It returns the log file
// when logging to a file; the caller closes it.
func SetupLogger(cfg ConfigData) (*os.File, error) {
	var output io.Writer = os.Stdout
	var file *os.File

	toConsole := cfg.LogToConsole || cfg.LogFile == ""
	if !toConsole {
		f, err := logdata.OpenLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		output, file = f, f
	}

	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	})
	slog.SetDefault(slog.New(handler))

	if file == nil {
		slog.Info("Program started. Log messages output to stdout.")
		return nil, nil
	}

	slog.Info("Program started. Future log messages will be written here.", "path", file.Name())
	return file, nil
}

// LogSource reports where the configuration came from.
func LogSource(path string) {
	if path == "" {
		slog.Info("No config file found, using defaults")
		return
	}
	slog.Info("Loaded configuration", "path", path)
}
