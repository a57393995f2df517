package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeEncode()
	c.normalizeRun()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	c.Scan.Pattern = strings.TrimSpace(c.Scan.Pattern)
	if c.Scan.Pattern == "" {
		c.Scan.Pattern = defaultScanPattern
	}
}

func (c *Config) normalizeEncode() {
	c.Encode.Codec = strings.ToLower(strings.TrimSpace(c.Encode.Codec))
	if c.Encode.Codec == "" {
		c.Encode.Codec = defaultCodec
	}
	c.Encode.Extension = strings.ToLower(strings.TrimSpace(c.Encode.Extension))
	if c.Encode.Extension == "" {
		c.Encode.Extension = defaultExtension
	}
	if !strings.HasPrefix(c.Encode.Extension, ".") {
		c.Encode.Extension = "." + c.Encode.Extension
	}
	c.Encode.Bitrate = strings.TrimSpace(c.Encode.Bitrate)
	if c.Encode.Bitrate == "" {
		c.Encode.Bitrate = defaultBitrate
	}
	if c.Encode.Channels == 0 {
		c.Encode.Channels = defaultChannels
	}
}

func (c *Config) normalizeRun() {
	if c.Run.Workers == 0 {
		c.Run.Workers = defaultWorkers()
	}
	if c.Run.MinDurationRatio == 0 {
		c.Run.MinDurationRatio = defaultMinDurationRatio
	}
	c.Run.Disposal = strings.ToLower(strings.TrimSpace(c.Run.Disposal))
	if c.Run.Disposal == "" {
		c.Run.Disposal = defaultDisposal
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		return nil
	}
	expanded, err := expandPath(c.History.Path)
	if err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	c.History.Path = expanded
	return nil
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
