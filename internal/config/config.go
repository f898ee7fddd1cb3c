package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tracecast configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Transport TransportConfig `yaml:"transport"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Render    RenderConfig    `yaml:"render"`
	Filter    FilterConfig    `yaml:"filter"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// TransportConfig holds socket transport settings for both roles.
type TransportConfig struct {
	Host          string   `yaml:"host"`
	ClientPort    int      `yaml:"client_port"` // port the outbound client dials
	ServerPort    int      `yaml:"server_port"` // port the inbound server binds
	DialTimeout   Duration `yaml:"dial_timeout"`
	ReadTimeout   Duration `yaml:"read_timeout"`
	AcceptTimeout Duration `yaml:"accept_timeout"`
}

// PipelineConfig holds correlation buffering and sweep settings.
type PipelineConfig struct {
	SweepInterval Duration `yaml:"sweep_interval"`
	IdleTimeout   Duration `yaml:"idle_timeout"`
	Workers       int      `yaml:"workers"`
	DrainGrace    Duration `yaml:"drain_grace"`
}

// RenderConfig holds external renderer invocation settings.
type RenderConfig struct {
	WorkDir      string   `yaml:"work_dir"`
	Script       string   `yaml:"script"`   // renderer entry script, passed before the transfer file
	Runtimes     []string `yaml:"runtimes"` // candidate executables, probed in order
	Timeout      Duration `yaml:"timeout"`
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// FilterConfig holds the exclusion policy inputs.
type FilterConfig struct {
	ExcludePaths   []string `yaml:"exclude_paths"`
	ExcludeModules []string `yaml:"exclude_modules"`
}

// NotifyConfig holds artifact notification sink settings.
type NotifyConfig struct {
	Sinks      []string `yaml:"sinks"` // any of "stdout", "file", "webhook"
	FilePath   string   `yaml:"file_path"`
	WebhookURL string   `yaml:"webhook_url"`
}

// Duration wraps time.Duration so YAML values like "5s" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for "5s"-style strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		LogLevel: getenv("TRACECAST_LOG_LEVEL", "info"),
		Transport: TransportConfig{
			Host:          getenv("TRACECAST_HOST", "127.0.0.1"),
			ClientPort:    getenvInt("TRACECAST_CLIENT_PORT", 5678),
			ServerPort:    getenvInt("TRACECAST_SERVER_PORT", 5679),
			DialTimeout:   getenvDuration("TRACECAST_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getenvDuration("TRACECAST_READ_TIMEOUT", 5*time.Minute),
			AcceptTimeout: getenvDuration("TRACECAST_ACCEPT_TIMEOUT", time.Second),
		},
		Pipeline: PipelineConfig{
			SweepInterval: getenvDuration("TRACECAST_SWEEP_INTERVAL", 2*time.Second),
			IdleTimeout:   getenvDuration("TRACECAST_IDLE_TIMEOUT", 5*time.Second),
			Workers:       getenvInt("TRACECAST_WORKERS", 2),
			DrainGrace:    getenvDuration("TRACECAST_DRAIN_GRACE", 10*time.Second),
		},
		Render: RenderConfig{
			WorkDir:      getenv("TRACECAST_WORK_DIR", defaultWorkDir()),
			Script:       os.Getenv("TRACECAST_RENDER_SCRIPT"),
			Runtimes:     getenvList("TRACECAST_RUNTIMES", []string{"python3", "python"}),
			Timeout:      getenvDuration("TRACECAST_RENDER_TIMEOUT", 120*time.Second),
			ProbeTimeout: getenvDuration("TRACECAST_PROBE_TIMEOUT", 3*time.Second),
		},
		Filter: FilterConfig{
			ExcludePaths:   getenvList("TRACECAST_EXCLUDE_PATHS", nil),
			ExcludeModules: getenvList("TRACECAST_EXCLUDE_MODULES", nil),
		},
		Notify: NotifyConfig{
			Sinks:      getenvList("TRACECAST_NOTIFY", []string{"stdout"}),
			FilePath:   os.Getenv("TRACECAST_NOTIFY_FILE"),
			WebhookURL: os.Getenv("TRACECAST_WEBHOOK_URL"),
		},
	}
}

// LoadFile overlays YAML settings from path onto an env-derived Config.
// Values present in the file win over environment values.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func defaultWorkDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tracecast"
	}
	return filepath.Join(home, ".tracecast")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) Duration {
	v := os.Getenv(key)
	if v == "" {
		return Duration(fallback)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Duration(fallback)
	}
	return Duration(d)
}

// getenvList splits a comma-separated env var, trimming whitespace.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
