// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fastfilestats/ffstats/lib/layout"
	"github.com/fastfilestats/ffstats/lib/region"
)

// DefaultMaxBytes is the section reservation cap: far above typical
// usage (a large source tree lands around a tenth of this) so the cap
// is never the thing that fails first, and cheap to reserve because
// pages commit on demand.
const DefaultMaxBytes uint32 = 300 * 1024 * 1024

// Config is the ffs-server configuration.
type Config struct {
	// Root is the POSIX directory to walk and watch.
	Root string `yaml:"root"`

	// Prefix is the published drive-qualified path the section
	// advertises for Root, e.g. `f:\src`.
	Prefix string `yaml:"prefix"`

	// SectionDir is where the section file is created.
	SectionDir string `yaml:"section_dir"`

	// MaxBytes is the section reservation cap.
	MaxBytes uint32 `yaml:"max_bytes"`

	// ControlSocket is the Unix socket path for administrative
	// requests. Empty derives "<section path>.sock".
	ControlSocket string `yaml:"control_socket"`

	// SnapshotDir is where freeze requests write snapshots when the
	// request does not name a path.
	SnapshotDir string `yaml:"snapshot_dir"`

	// StatsInterval is how often the server logs its counters, in
	// time.ParseDuration form ("60s", "5m").
	StatsInterval string `yaml:"stats_interval"`

	// Paranoid turns developer-time invariant violations into
	// process aborts. Off in production.
	Paranoid bool `yaml:"paranoid"`
}

// Default returns the default configuration. Root and Prefix have no
// defaults — they are the two values every deployment must state.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		SectionDir:    "/dev/shm",
		MaxBytes:      DefaultMaxBytes,
		SnapshotDir:   filepath.Join(homeDir, ".cache", "ffstats", "snapshots"),
		StatsInterval: "60s",
	}
}

// Load loads configuration from the FFS_CONFIG environment variable.
func Load() (*Config, error) {
	configPath := os.Getenv("FFS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FFS_CONFIG environment variable not set; " +
			"set it to the path of your ffstats.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging over
// the defaults and expanding ${VAR} patterns in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	c.SectionDir = expandVars(c.SectionDir, vars)
	c.ControlSocket = expandVars(c.ControlSocket, vars)
	c.SnapshotDir = expandVars(c.SnapshotDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, fmt.Errorf("root is required"))
	} else if info, err := os.Stat(c.Root); err != nil {
		errs = append(errs, fmt.Errorf("root: %w", err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("root %s is not a directory", c.Root))
	}

	if c.Prefix == "" {
		errs = append(errs, fmt.Errorf("prefix is required"))
	} else if !layout.IsQualified(c.Prefix) {
		errs = append(errs, fmt.Errorf("prefix %q is not drive-qualified", c.Prefix))
	} else if layout.HasTrailingSeparator(c.Prefix) {
		errs = append(errs, fmt.Errorf("prefix %q must not end in a separator", c.Prefix))
	}

	if c.SectionDir == "" {
		errs = append(errs, fmt.Errorf("section_dir is required"))
	}
	if c.MaxBytes == 0 {
		errs = append(errs, fmt.Errorf("max_bytes must be positive"))
	}
	if interval, err := time.ParseDuration(c.StatsInterval); err != nil {
		errs = append(errs, fmt.Errorf("stats_interval: %w", err))
	} else if interval <= 0 {
		errs = append(errs, fmt.Errorf("stats_interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SectionPath returns the full section file path for this config.
func (c *Config) SectionPath() string {
	return region.SectionPath(c.SectionDir, c.Prefix)
}

// ControlSocketPath returns the control socket path, deriving it from
// the section path when unset.
func (c *Config) ControlSocketPath() string {
	if c.ControlSocket != "" {
		return c.ControlSocket
	}
	return c.SectionPath() + ".sock"
}

// StatsIntervalDuration returns the parsed stats interval. Call after
// Validate.
func (c *Config) StatsIntervalDuration() time.Duration {
	interval, err := time.ParseDuration(c.StatsInterval)
	if err != nil {
		return time.Minute
	}
	return interval
}
