package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

var scalePattern = regexp.MustCompile(`^\d+x\d+$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDeface(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDeface() error {
	if c.Deface.Thresh < 0 || c.Deface.Thresh > 1 {
		return errors.New("deface.thresh must be between 0 and 1")
	}
	if c.Deface.MaskScale <= 0 {
		return errors.New("deface.mask_scale must be positive")
	}
	if !slices.Contains(replaceModes, c.Deface.ReplaceWith) {
		return fmt.Errorf("deface.replacewith: unsupported value %q", c.Deface.ReplaceWith)
	}
	if c.Deface.Scale != "" && !scalePattern.MatchString(c.Deface.Scale) {
		return fmt.Errorf("deface.scale must look like WxH, got %q", c.Deface.Scale)
	}
	if c.Deface.BatchSize < 0 {
		return errors.New("deface.batch_size must be non-negative")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be at least 1")
	}
	if c.Batch.PollIntervalMS < 1 {
		return errors.New("batch.poll_interval_ms must be positive")
	}
	if c.Batch.GracePeriodSeconds < 1 {
		return errors.New("batch.grace_period_seconds must be positive")
	}
	if c.Batch.EventBuffer < 1 {
		return errors.New("batch.event_buffer must be positive")
	}
	if c.Batch.PublishTimeoutMS < 1 {
		return errors.New("batch.publish_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
