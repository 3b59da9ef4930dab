package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/cloudmaint/internal/env"
	"github.com/loykin/cloudmaint/internal/logger"
	"github.com/loykin/cloudmaint/internal/maintenance"
	"github.com/loykin/cloudmaint/internal/schedule"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Env      []string         `toml:"env" mapstructure:"env"`
	EnvFiles []string         `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool             `toml:"use_os_env" mapstructure:"use_os_env"`
	Debug    bool             `toml:"debug" mapstructure:"debug"`
	Paths    PathsConfig      `toml:"paths" mapstructure:"paths"`
	Log      *LogConfig       `toml:"log" mapstructure:"log"`
	Tasks    []TaskConfig     `toml:"tasks" mapstructure:"tasks"`
	Notify   NotifyConfig     `toml:"notify" mapstructure:"notify"`
	History  HistoryConfig    `toml:"history" mapstructure:"history"`
	Server   ServerConfig     `toml:"server" mapstructure:"server"`
	Metrics  MetricsConfig    `toml:"metrics" mapstructure:"metrics"`
	Schedule []schedule.Entry `toml:"schedule" mapstructure:"schedule"`
}

// PathsConfig locates the tool's persisted state.
type PathsConfig struct {
	Lock       string `toml:"lock" mapstructure:"lock"`
	Status     string `toml:"status" mapstructure:"status"`
	ReportDir  string `toml:"report_dir" mapstructure:"report_dir"`
	Credential string `toml:"credential" mapstructure:"credential"`
	// Repo is the version-controlled IaC directory whose sync state is
	// recorded after each session. Empty disables the check.
	Repo string `toml:"repo" mapstructure:"repo"`
}

type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type TaskConfig struct {
	Name    string        `toml:"name" mapstructure:"name"`
	Command string        `toml:"command" mapstructure:"command"`
	WorkDir string        `toml:"workdir" mapstructure:"workdir"`
	Env     []string      `toml:"env" mapstructure:"env"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
	Log     *LogConfig    `toml:"log" mapstructure:"log"`
}

type NotifyConfig struct {
	Enabled bool     `toml:"enabled" mapstructure:"enabled"`
	Command string   `toml:"command" mapstructure:"command"`
	From    string   `toml:"from" mapstructure:"from"`
	To      []string `toml:"to" mapstructure:"to"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// DefaultCommands are the canonical task commands used when the config file
// does not override them.
var DefaultCommands = map[maintenance.TaskName]string{
	maintenance.TaskSecurity:    "sh -c 'apt-get update -q && apt-get upgrade -y -q'",
	maintenance.TaskPerformance: "sysctl --system",
	maintenance.TaskConfig:      "terraform validate",
	maintenance.TaskBackup:      "sh -c 'tar czf /var/backups/cloudmaint-config.tgz /etc/cloudmaint'",
}

// Default returns the built-in configuration used when no file is given.
func Default() *FileConfig {
	fc := &FileConfig{UseOSEnv: true}
	fc.applyDefaults()
	return fc
}

// Load reads and validates a TOML config file.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.validate(); err != nil {
		return nil, err
	}
	fc.applyDefaults()
	return &fc, nil
}

func (fc *FileConfig) validate() error {
	for _, tc := range fc.Tasks {
		if _, err := maintenance.ParseTask(tc.Name); err != nil {
			return fmt.Errorf("tasks: %w", err)
		}
	}
	for _, e := range fc.Schedule {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		if _, err := maintenance.ParseTask(e.Task); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	return nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.Paths.Lock == "" {
		fc.Paths.Lock = "/var/run/cloudmaint.lock"
	}
	if fc.Paths.Status == "" {
		fc.Paths.Status = "/var/lib/cloudmaint/status.json"
	}
	if fc.Paths.ReportDir == "" {
		fc.Paths.ReportDir = filepath.Join(filepath.Dir(fc.Paths.Status), "reports")
	}
	if fc.Paths.Credential == "" {
		fc.Paths.Credential = "/var/lib/cloudmaint/credentials.enc"
	}
	if fc.Notify.Command == "" {
		fc.Notify.Command = "sendmail"
	}
	if fc.Server.Listen == "" {
		fc.Server.Listen = ":8080"
	}
	if fc.Metrics.Listen == "" {
		fc.Metrics.Listen = ":9090"
	}
}

// Specs materializes per-task maintenance specs. Every canonical task gets a
// spec: configured values first, DefaultCommands for the rest. Top-level log
// settings apply unless a task overrides them.
func (fc *FileConfig) Specs() map[maintenance.TaskName]maintenance.Spec {
	out := make(map[maintenance.TaskName]maintenance.Spec, len(maintenance.CanonicalOrder))
	for _, name := range maintenance.CanonicalOrder {
		out[name] = maintenance.Spec{
			Name:    name,
			Command: DefaultCommands[name],
			Log:     fc.loggerConfig(nil),
		}
	}
	for _, tc := range fc.Tasks {
		name, err := maintenance.ParseTask(tc.Name)
		if err != nil {
			continue // validate rejected these already
		}
		spec := maintenance.Spec{
			Name:    name,
			Command: tc.Command,
			WorkDir: tc.WorkDir,
			Env:     tc.Env,
			Timeout: tc.Timeout,
			Log:     fc.loggerConfig(tc.Log),
		}
		if spec.Command == "" {
			spec.Command = DefaultCommands[name]
		}
		out[name] = spec
	}
	return out
}

// loggerConfig merges top-level log settings with a per-task override.
func (fc *FileConfig) loggerConfig(override *LogConfig) logger.Config {
	var lc logger.Config
	if fc.Log != nil {
		lc = logger.Config{
			Dir:        fc.Log.Dir,
			MaxSizeMB:  fc.Log.MaxSizeMB,
			MaxBackups: fc.Log.MaxBackups,
			MaxAgeDays: fc.Log.MaxAgeDays,
			Compress:   fc.Log.Compress,
		}
	}
	if override != nil {
		if override.Dir != "" {
			lc.Dir = override.Dir
		}
		if override.MaxSizeMB != 0 {
			lc.MaxSizeMB = override.MaxSizeMB
		}
		if override.MaxBackups != 0 {
			lc.MaxBackups = override.MaxBackups
		}
		if override.MaxAgeDays != 0 {
			lc.MaxAgeDays = override.MaxAgeDays
		}
		if override.Compress {
			lc.Compress = true
		}
	}
	return lc
}

// Environment composes the global environment for task commands.
// Precedence: OS env (when use_os_env) as base, then env_files in order,
// then the top-level env list last.
func (fc *FileConfig) Environment() (*env.Env, error) {
	e := env.New()
	if fc.UseOSEnv {
		e.FromOS()
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			e.Set(k, v)
		}
	}
	for _, kv := range fc.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 && kv[:i] != "" {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	return e, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no
// quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
