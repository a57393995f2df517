package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/opusify/config.toml"
		}
		return fmt.Errorf("paths.source_dir is required. Edit %s (create with 'opusify config init')", defaultPath)
	}
	if c.Paths.StagingDir == c.Paths.SourceDir {
		return errors.New("paths.staging_dir must differ from paths.source_dir")
	}
	return nil
}

func (c *Config) validateScan() error {
	if _, err := regexp.Compile("(?i)" + c.Scan.Pattern); err != nil {
		return fmt.Errorf("scan.pattern: %w", err)
	}
	return nil
}

func (c *Config) validateEncode() error {
	if c.Encode.Channels < 1 || c.Encode.Channels > 2 {
		return errors.New("encode.channels must be 1 or 2")
	}
	if !bitratePattern.MatchString(c.Encode.Bitrate) {
		return fmt.Errorf("encode.bitrate %q must look like 32k or 64000", c.Encode.Bitrate)
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.Workers < 1 {
		return errors.New("run.workers must be at least 1")
	}
	if c.Run.MinDurationRatio <= 0 || c.Run.MinDurationRatio > 1 {
		return errors.New("run.min_duration_ratio must be in (0, 1]")
	}
	switch c.Run.Disposal {
	case DisposalKeep, DisposalRename, DisposalDelete:
	default:
		return fmt.Errorf("run.disposal %q must be one of keep, rename, delete", c.Run.Disposal)
	}
	return nil
}

var bitratePattern = regexp.MustCompile(`^\d+[kKmM]?$`)
