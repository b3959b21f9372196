package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Deface contains options passed to the face anonymization tool.
type Deface struct {
	Binary       string  `toml:"binary"`
	Thresh       float64 `toml:"thresh"`
	Scale        string  `toml:"scale"`
	Boxes        bool    `toml:"boxes"`
	MaskScale    float64 `toml:"mask_scale"`
	ReplaceWith  string  `toml:"replacewith"`
	KeepAudio    bool    `toml:"keep_audio"`
	KeepMetadata bool    `toml:"keep_metadata"`
	BatchSize    int     `toml:"batch_size"`
	ExtraArgs    string  `toml:"extra_args"`
}

// Transcribe contains options passed to the transcription tool.
type Transcribe struct {
	Binary    string `toml:"binary"`
	Model     string `toml:"model"`
	Language  string `toml:"language"`
	ExtraArgs string `toml:"extra_args"`
}

// Batch contains coordinator and event channel tuning.
type Batch struct {
	Workers            int `toml:"workers"`
	PollIntervalMS     int `toml:"poll_interval_ms"`
	GracePeriodSeconds int `toml:"grace_period_seconds"`
	EventBuffer        int `toml:"event_buffer"`
	PublishTimeoutMS   int `toml:"publish_timeout_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Sightline.
//
// Configuration sections by subsystem:
//   - Paths: output, log, and state directories
//   - Deface: face anonymization tool options
//   - Transcribe: transcription tool options
//   - Batch: worker count, polling cadence, termination grace period
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Deface     Deface     `toml:"deface"`
	Transcribe Transcribe `toml:"transcribe"`
	Batch      Batch      `toml:"batch"`
	Logging    Logging    `toml:"logging"`
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Save writes the configuration to path as TOML, creating parent directories.
func (c *Config) Save(path string) error {
	if c == nil {
		return errors.New("save config: nil config")
	}
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp := expanded + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, expanded); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// resolveConfigPath picks the config file to load. An explicit path is used
// as given; otherwise the user config wins over ./sightline.toml. When no
// candidate exists the user config path is returned with exists=false.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		if err != nil {
			return "", false, err
		}
		return expanded, exists, nil
	}

	var candidates []string
	for _, candidate := range []string{defaultConfigPath, defaultProjectConfig} {
		expanded, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		candidates = append(candidates, expanded)
	}
	for _, candidate := range candidates {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return candidates[0], false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return false, fmt.Errorf("config path %q is a directory", path)
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat config: %w", err)
	}
}

// EnsureDirectories creates the directories a run writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the SQLite run history location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the file used to serialize history writers.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "sightline.lock")
}

// PollInterval returns the consumer polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Batch.PollIntervalMS) * time.Millisecond
}

// GracePeriod returns how long a terminated tool may take to exit before it is killed.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Batch.GracePeriodSeconds) * time.Second
}

// PublishTimeout returns the longest a worker waits on a full event channel.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Batch.PublishTimeoutMS) * time.Millisecond
}

// DefaceArgs renders the deface options as command-line tokens.
func (c *Config) DefaceArgs() []string {
	d := c.Deface
	args := []string{
		"--thresh", strconv.FormatFloat(d.Thresh, 'f', -1, 64),
		"--mask-scale", strconv.FormatFloat(d.MaskScale, 'f', -1, 64),
		"--replacewith", d.ReplaceWith,
	}
	if d.Scale != "" {
		args = append(args, "--scale", d.Scale)
	}
	if d.Boxes {
		args = append(args, "--boxes")
	}
	if d.KeepAudio {
		args = append(args, "--keep-audio")
	}
	if d.KeepMetadata {
		args = append(args, "--keep-metadata")
	}
	if d.BatchSize > 0 {
		args = append(args, "--batch-size", strconv.Itoa(d.BatchSize))
	}
	return args
}

// DefaceExtraArgs returns the full extra argument string for deface runs:
// the configured options followed by any free-form extra_args.
func (c *Config) DefaceExtraArgs() string {
	return joinArgs(c.DefaceArgs(), c.Deface.ExtraArgs)
}

// TranscribeExtraArgs returns the full extra argument string for transcription runs.
func (c *Config) TranscribeExtraArgs() string {
	var args []string
	if c.Transcribe.Model != "" {
		args = append(args, "--model", c.Transcribe.Model)
	}
	if c.Transcribe.Language != "" {
		args = append(args, "--language", c.Transcribe.Language)
	}
	return joinArgs(args, c.Transcribe.ExtraArgs)
}

func joinArgs(args []string, extra string) string {
	if extra = strings.TrimSpace(extra); extra != "" {
		args = append(args, extra)
	}
	return strings.Join(args, " ")
}

// DefaultOutputDir returns ~/Desktop when it exists, otherwise the home directory.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	desktop := filepath.Join(home, "Desktop")
	if info, err := os.Stat(desktop); err == nil && info.IsDir() {
		return desktop
	}
	return home
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ErrConfigExists reports that WriteSample refused to replace a file.
var ErrConfigExists = errors.New("config file already exists")

// WriteSample writes the annotated sample configuration to path, which may
// start with "~". An existing file is only replaced when overwrite is set.
// The resolved path is returned.
func WriteSample(path string, overwrite bool) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	target, err := expandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return target, fmt.Errorf("%w: %s", ErrConfigExists, target)
		}
		return target, fmt.Errorf("write sample config: %w", err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		file.Close()
		return target, fmt.Errorf("write sample config: %w", err)
	}
	return target, file.Close()
}
