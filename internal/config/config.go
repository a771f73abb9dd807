// Package config loads the daemon's own operational settings (queue
// root, run path, file names, default timeouts) from CLI flags bound
// through cobra/viper, the same pairing the teacher's cmd/config.go
// and cmd/scheduler.go use for the "dagu scheduler" subcommand, with
// .env overrides and default/override merging borrowed from
// internal/admin/config.go's setup() and the teacher's direct
// godotenv/mergo deps.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the daemon's own operational configuration — distinct
// from the Lmap config document the Codec boundary parses.
type Config struct {
	QueuePath  string
	ConfigPath string
	RunPath    string

	PIDFile    string
	StatusFile string

	Debug     bool
	LogFormat string

	// ControllerTimeoutDefault seeds Agent.ControllerTimeout when the
	// config document omits it.
	ControllerTimeoutDefault uint32

	// RandCeiling bounds Event.RandomSpread (spec §3: "must be less
	// than a platform RAND ceiling").
	RandCeiling uint32

	// ExposeAgentEnv controls whether Agent identifiers are exported
	// into a Task's environment at exec time. Left disabled by default
	// per spec §9's open question — see DESIGN.md.
	ExposeAgentEnv bool
}

const (
	defaultPIDFile    = "lmapd.pid"
	defaultStatusFile = "lmapd.state"
	defaultRandCeiling = uint32(1) << 31
)

// Default returns the built-in defaults, rooted under XDG base
// directories, mirroring the teacher's $HOME/.config/dagu convention.
func Default() Config {
	appDir := "lmap-agent"
	return Config{
		QueuePath:                filepath.Join(xdg.DataHome, appDir, "queue"),
		ConfigPath:               filepath.Join(xdg.ConfigHome, appDir, "config.json"),
		RunPath:                  filepath.Join(xdg.StateHome, appDir, "run"),
		PIDFile:                  defaultPIDFile,
		StatusFile:               defaultStatusFile,
		ControllerTimeoutDefault: 604800,
		RandCeiling:              defaultRandCeiling,
		ExposeAgentEnv:           false,
	}
}

// Overrides holds the subset of fields a CLI invocation may set;
// zero-value fields are left for Default (or a loaded .env/YAML file) to supply.
type Overrides struct {
	QueuePath  string
	ConfigPath string
	RunPath    string
	Debug      bool
	LogFormat  string

	// YAMLFile, if set, points at the daemon's own operational config
	// file (distinct from the Lmap config document the Codec boundary
	// parses, which is JSON per §6). Read with gopkg.in/yaml.v3.
	YAMLFile string
}

// yamlConfig mirrors the subset of Config an operator may set in the
// daemon's own YAML operational config file.
type yamlConfig struct {
	QueuePath  string `yaml:"queue_path"`
	ConfigPath string `yaml:"config_path"`
	RunPath    string `yaml:"run_path"`
	PIDFile    string `yaml:"pid_file"`
	StatusFile string `yaml:"status_file"`
	Debug      bool   `yaml:"debug"`
	LogFormat  string `yaml:"log_format"`
}

func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	fromYAML := Config{
		QueuePath:  y.QueuePath,
		ConfigPath: y.ConfigPath,
		RunPath:    y.RunPath,
		PIDFile:    y.PIDFile,
		StatusFile: y.StatusFile,
		Debug:      y.Debug,
		LogFormat:  y.LogFormat,
	}
	return mergo.Merge(cfg, fromYAML, mergo.WithOverride)
}

// Load builds a Config by layering, in increasing priority: built-in
// defaults, the optional YAML operational file (ov.YAMLFile), an
// optional .env file's KEY=VALUE pairs (read with
// godotenv, as the teacher's stack does for its own admin config),
// and explicit CLI overrides. The merge itself uses mergo, matching
// internal/admin/config.go's "fall back to default when unset" shape.
func Load(envFile string, ov Overrides) (Config, error) {
	cfg := Default()

	if ov.YAMLFile != "" {
		if _, err := os.Stat(ov.YAMLFile); err == nil {
			if err := applyYAMLFile(&cfg, ov.YAMLFile); err != nil {
				return Config{}, err
			}
		}
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			vars, err := godotenv.Read(envFile)
			if err != nil {
				return Config{}, fmt.Errorf("config: reading %s: %w", envFile, err)
			}
			applyEnvOverrides(&cfg, vars)
		}
	}

	fromFlags := Config{
		QueuePath:  ov.QueuePath,
		ConfigPath: ov.ConfigPath,
		RunPath:    ov.RunPath,
		Debug:      ov.Debug,
		LogFormat:  ov.LogFormat,
	}
	if err := mergo.Merge(&cfg, fromFlags, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("config: merge: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, vars map[string]string) {
	if v, ok := vars["LMAP_QUEUE_PATH"]; ok && v != "" {
		cfg.QueuePath = v
	}
	if v, ok := vars["LMAP_CONFIG_PATH"]; ok && v != "" {
		cfg.ConfigPath = v
	}
	if v, ok := vars["LMAP_RUN_PATH"]; ok && v != "" {
		cfg.RunPath = v
	}
	if v, ok := vars["LMAP_LOG_FORMAT"]; ok && v != "" {
		cfg.LogFormat = v
	}
}

// PIDFilePath returns the absolute path of the daemon's pid lock file.
func (c Config) PIDFilePath() string { return filepath.Join(c.RunPath, c.PIDFile) }

// StatusFilePath returns the absolute path of the USR1 state dump file.
func (c Config) StatusFilePath() string { return filepath.Join(c.RunPath, c.StatusFile) }
