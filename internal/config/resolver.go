package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

const (
	DefaultDBPath      = "pai_cube.db"
	DefaultHTTPAddr    = ":8000"
	DefaultGRPCAddr    = "localhost:50051"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultSchedule    = "@every 1m"
	DefaultParallelism = 4
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the config file path and any CLI flag values.
// Empty fields leave the lower-precedence value in place.
type ResolveOptions struct {
	ConfigPath  string
	CLIDBPath   string
	CLIHTTPAddr string
	CLIGRPCAddr string
	CLILogLevel string
	CLISchedule string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	HTTPAddr ResolvedValue `json:"http_addr"`
	GRPCAddr ResolvedValue `json:"grpc_addr"`

	LogLevel  ResolvedValue `json:"log_level"`
	LogFormat ResolvedValue `json:"log_format"`

	SweepSchedule ResolvedValue `json:"sweep_schedule"`
	SweepEnabled  ResolvedValue `json:"sweep_enabled"`

	BuildParallelism ResolvedValue `json:"build_parallelism"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Sweep struct {
		Schedule string `yaml:"schedule"`
		Enabled  *bool  `yaml:"enabled"`
	} `yaml:"sweep"`
	Build struct {
		Parallelism int `yaml:"parallelism"`
	} `yaml:"build"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pai", "config.yaml")
}

// ResolveConfig layers defaults, the YAML file, environment and CLI flags,
// in that order. A missing config file is not an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	setDefault(&out.DBPath, DefaultDBPath)
	setDefault(&out.HTTPAddr, DefaultHTTPAddr)
	setDefault(&out.GRPCAddr, DefaultGRPCAddr)
	setDefault(&out.LogLevel, DefaultLogLevel)
	setDefault(&out.LogFormat, DefaultLogFormat)
	setDefault(&out.SweepSchedule, DefaultSchedule)
	setDefault(&out.SweepEnabled, "true")
	setDefault(&out.BuildParallelism, strconv.Itoa(DefaultParallelism))

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.HTTPAddr, cfg.HTTPAddr, SourceConfig, path)
		apply(&out.GRPCAddr, cfg.GRPCAddr, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFormat, cfg.Log.Format, SourceConfig, path)
		apply(&out.SweepSchedule, cfg.Sweep.Schedule, SourceConfig, path)
		if cfg.Sweep.Enabled != nil {
			apply(&out.SweepEnabled, strconv.FormatBool(*cfg.Sweep.Enabled), SourceConfig, path)
		}
		if cfg.Build.Parallelism > 0 {
			apply(&out.BuildParallelism, strconv.Itoa(cfg.Build.Parallelism), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, "PAI_DB")
	applyEnv(&out.HTTPAddr, "PAI_HTTP_ADDR")
	applyEnv(&out.GRPCAddr, "PAI_GRPC_ADDR")
	applyEnv(&out.LogLevel, "PAI_LOG_LEVEL")
	applyEnv(&out.SweepSchedule, "PAI_SWEEP_SCHEDULE")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.HTTPAddr, opts.CLIHTTPAddr, SourceCLI, "--http")
	apply(&out.GRPCAddr, opts.CLIGRPCAddr, SourceCLI, "--grpc")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")
	apply(&out.SweepSchedule, opts.CLISchedule, SourceCLI, "--sweep")

	out.DBPath.Value = expandUserPath(out.DBPath.Value)

	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}

// Log returns the logger settings.
func (r ResolvedConfig) Log() logging.LogConfig {
	return logging.LogConfig{Level: r.LogLevel.Value, Format: r.LogFormat.Value}
}

// Sweep reports whether the pending-cube sweep runs, and on which schedule.
func (r ResolvedConfig) Sweep() (enabled bool, schedule string) {
	enabled, _ = strconv.ParseBool(r.SweepEnabled.Value)
	return enabled, r.SweepSchedule.Value
}

// Parallelism is the bound on concurrent meta computation within one build.
func (r ResolvedConfig) Parallelism() int {
	n, err := strconv.Atoi(r.BuildParallelism.Value)
	if err != nil || n <= 0 {
		return DefaultParallelism
	}
	return n
}

func (r ResolvedConfig) validate() error {
	if _, err := strconv.ParseBool(r.SweepEnabled.Value); err != nil {
		return fmt.Errorf("sweep.enabled %q (%s): %w", r.SweepEnabled.Value, r.SweepEnabled.Source, err)
	}
	if n, err := strconv.Atoi(r.BuildParallelism.Value); err != nil || n <= 0 {
		return fmt.Errorf("build.parallelism %q (%s): want a positive integer", r.BuildParallelism.Value, r.BuildParallelism.Source)
	}
	if _, err := cron.ParseStandard(r.SweepSchedule.Value); err != nil {
		return fmt.Errorf("sweep.schedule %q (%s): %w", r.SweepSchedule.Value, r.SweepSchedule.Source, err)
	}
	switch strings.ToLower(r.LogFormat.Value) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q (%s): want json or console", r.LogFormat.Value, r.LogFormat.Source)
	}
	return nil
}

func setDefault(dst *ResolvedValue, v string) {
	*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
