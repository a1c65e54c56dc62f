package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "PULLGUARD_"

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version *int        `yaml:"version"`
	Command fileCommand `yaml:"command"`
	Watch   fileWatch   `yaml:"watch"`
	Output  fileOutput  `yaml:"output"`
}

type fileCommand struct {
	Bin       *string   `yaml:"bin"`
	Args      *[]string `yaml:"args"`
	ExtraPath *[]string `yaml:"extra_path"`
	Dir       *string   `yaml:"dir"`
	EnvFile   *string   `yaml:"env_file"`
}

type fileWatch struct {
	LowSpeedMBps           *float64 `yaml:"low_speed_mbps"`
	ArmSpeedMBps           *float64 `yaml:"arm_speed_mbps"`
	MinRunSeconds          *int     `yaml:"min_run_seconds"`
	ProgressTimeoutSeconds *int     `yaml:"progress_timeout_seconds"`
	CooldownSeconds        *int     `yaml:"cooldown_seconds"`
	PollIntervalMS         *int     `yaml:"poll_interval_ms"`
	LowSpeedSamples        *int     `yaml:"low_speed_samples"`
	LaunchRetries          *int     `yaml:"launch_retries"`
	MaxAttempts            *int     `yaml:"max_attempts"`
	HeaderMarker           *string  `yaml:"header_marker"`
}

type fileOutput struct {
	Progress *string `yaml:"progress"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}

	if fc.Command.Bin != nil {
		cfg.Command.Bin = strings.TrimSpace(*fc.Command.Bin)
	}
	if fc.Command.Args != nil {
		cfg.Command.Args = append([]string{}, (*fc.Command.Args)...)
	}
	if fc.Command.ExtraPath != nil {
		cfg.Command.ExtraPath = append([]string{}, (*fc.Command.ExtraPath)...)
	}
	if fc.Command.Dir != nil {
		cfg.Command.Dir = strings.TrimSpace(*fc.Command.Dir)
	}
	if fc.Command.EnvFile != nil {
		cfg.Command.EnvFile = strings.TrimSpace(*fc.Command.EnvFile)
	}

	w := fc.Watch
	setFloat(&cfg.Watch.LowSpeedMBps, w.LowSpeedMBps)
	setFloat(&cfg.Watch.ArmSpeedMBps, w.ArmSpeedMBps)
	setInt(&cfg.Watch.MinRunSeconds, w.MinRunSeconds)
	setInt(&cfg.Watch.ProgressTimeoutSeconds, w.ProgressTimeoutSeconds)
	setInt(&cfg.Watch.CooldownSeconds, w.CooldownSeconds)
	setInt(&cfg.Watch.PollIntervalMS, w.PollIntervalMS)
	setInt(&cfg.Watch.LowSpeedSamples, w.LowSpeedSamples)
	setInt(&cfg.Watch.LaunchRetries, w.LaunchRetries)
	setInt(&cfg.Watch.MaxAttempts, w.MaxAttempts)
	if w.HeaderMarker != nil {
		cfg.Watch.HeaderMarker = *w.HeaderMarker
	}

	if fc.Output.Progress != nil {
		cfg.Output.Progress = strings.TrimSpace(*fc.Output.Progress)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env[envPrefix+"BIN"]); value != "" {
		cfg.Command.Bin = value
	}
	if value := strings.TrimSpace(env[envPrefix+"EXTRA_PATH"]); value != "" {
		cfg.Command.ExtraPath = filepath.SplitList(value)
	}
	if value := strings.TrimSpace(env[envPrefix+"ENV_FILE"]); value != "" {
		cfg.Command.EnvFile = value
	}
	if value := strings.TrimSpace(env[envPrefix+"HEADER_MARKER"]); value != "" {
		cfg.Watch.HeaderMarker = value
	}
	if value := strings.TrimSpace(env[envPrefix+"PROGRESS"]); value != "" {
		cfg.Output.Progress = value
	}

	floats := []struct {
		key  string
		dest *float64
	}{
		{key: "LOW_SPEED_MBPS", dest: &cfg.Watch.LowSpeedMBps},
		{key: "ARM_SPEED_MBPS", dest: &cfg.Watch.ArmSpeedMBps},
	}
	for _, f := range floats {
		value := strings.TrimSpace(env[envPrefix+f.key])
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, f.key, value, err)
		}
		*f.dest = parsed
	}

	ints := []struct {
		key  string
		dest *int
	}{
		{key: "MIN_RUN_SECONDS", dest: &cfg.Watch.MinRunSeconds},
		{key: "PROGRESS_TIMEOUT_SECONDS", dest: &cfg.Watch.ProgressTimeoutSeconds},
		{key: "COOLDOWN_SECONDS", dest: &cfg.Watch.CooldownSeconds},
		{key: "POLL_INTERVAL_MS", dest: &cfg.Watch.PollIntervalMS},
		{key: "LOW_SPEED_SAMPLES", dest: &cfg.Watch.LowSpeedSamples},
		{key: "LAUNCH_RETRIES", dest: &cfg.Watch.LaunchRetries},
		{key: "MAX_ATTEMPTS", dest: &cfg.Watch.MaxAttempts},
	}
	for _, i := range ints {
		value := strings.TrimSpace(env[envPrefix+i.key])
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, i.key, value, err)
		}
		*i.dest = parsed
	}
	return nil
}

func normalize(cfg *Config) error {
	cfg.Output.Progress = strings.ToLower(strings.TrimSpace(cfg.Output.Progress))
	if cfg.Output.Progress == "" {
		cfg.Output.Progress = "auto"
	}

	var paths []string
	for _, raw := range cfg.Command.ExtraPath {
		expanded, err := ExpandPath(raw)
		if err != nil {
			return err
		}
		if expanded != "" {
			paths = append(paths, expanded)
		}
	}
	cfg.Command.ExtraPath = paths

	dir, err := ExpandPath(cfg.Command.Dir)
	if err != nil {
		return err
	}
	cfg.Command.Dir = dir

	envFile, err := ExpandPath(cfg.Command.EnvFile)
	if err != nil {
		return err
	}
	cfg.Command.EnvFile = envFile
	return nil
}

func setInt(dest *int, value *int) {
	if value != nil {
		*dest = *value
	}
}

func setFloat(dest *float64, value *float64) {
	if value != nil {
		*dest = *value
	}
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
