package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeBatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		if value, ok := os.LookupEnv("SIGHTLINE_OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
			c.Paths.OutputDir = value
		} else {
			c.Paths.OutputDir = DefaultOutputDir()
		}
	}
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Deface.Binary = strings.TrimSpace(c.Deface.Binary)
	if value, ok := os.LookupEnv("SIGHTLINE_DEFACE_BIN"); ok && strings.TrimSpace(value) != "" {
		c.Deface.Binary = strings.TrimSpace(value)
	}
	if c.Deface.Binary == "" {
		c.Deface.Binary = defaultDefaceBinary
	}
	c.Deface.ReplaceWith = strings.ToLower(strings.TrimSpace(c.Deface.ReplaceWith))
	if c.Deface.ReplaceWith == "" {
		c.Deface.ReplaceWith = defaultDefaceReplaceWith
	}
	c.Deface.Scale = strings.TrimSpace(c.Deface.Scale)
	c.Deface.ExtraArgs = strings.TrimSpace(c.Deface.ExtraArgs)

	c.Transcribe.Binary = strings.TrimSpace(c.Transcribe.Binary)
	if c.Transcribe.Binary == "" {
		c.Transcribe.Binary = defaultTranscribeBinary
	}
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	c.Transcribe.Language = strings.TrimSpace(c.Transcribe.Language)
	c.Transcribe.ExtraArgs = strings.TrimSpace(c.Transcribe.ExtraArgs)
}

func (c *Config) normalizeBatch() {
	if c.Batch.Workers == 0 {
		c.Batch.Workers = defaultWorkers
	}
	if c.Batch.PollIntervalMS == 0 {
		c.Batch.PollIntervalMS = defaultPollIntervalMS
	}
	if c.Batch.GracePeriodSeconds == 0 {
		c.Batch.GracePeriodSeconds = defaultGracePeriodSeconds
	}
	if c.Batch.EventBuffer == 0 {
		c.Batch.EventBuffer = defaultEventBuffer
	}
	if c.Batch.PublishTimeoutMS == 0 {
		c.Batch.PublishTimeoutMS = defaultPublishTimeoutMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
