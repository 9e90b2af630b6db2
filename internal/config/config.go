// Package config loads .shabari.yml configuration files for scan settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/shabari/shabari/internal/engine/pattern"
)

// FileNames are the config file names looked up, in order.
var FileNames = []string{".shabari.yml", ".shabari.yaml"}

// Values accepted by fail_on.
const (
	FailOnAny     = "any"
	FailOnMalware = "malware"
	FailOnError   = "error"
)

var (
	validFailOn  = []string{"", FailOnAny, FailOnMalware, FailOnError}
	validFormats = []string{"", "terminal", "json", "sarif", "markdown"}
)

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config represents the .shabari.yml configuration file.
type Config struct {
	Rules        string   `yaml:"rules,omitempty"`
	DefaultRules *bool    `yaml:"default_rules,omitempty"`
	Ignore       []string `yaml:"ignore,omitempty"`
	Format       string   `yaml:"format,omitempty"`
	FailOn       string   `yaml:"fail_on,omitempty"`
	Timeout      Duration `yaml:"timeout,omitempty"`
	ChunkSize    int      `yaml:"chunk_size,omitempty"`
	Workers      int      `yaml:"workers,omitempty"`
	LogLevel     string   `yaml:"log_level,omitempty"`
}

// UseDefaultRules reports whether the built-in rules should be loaded when
// no rule file is given. Unset means true.
func (c Config) UseDefaultRules() bool {
	return c.DefaultRules == nil || *c.DefaultRules
}

// Validate checks enumerated and numeric fields.
func (c Config) Validate() error {
	if !slices.Contains(validFailOn, c.FailOn) {
		return fmt.Errorf("invalid fail_on %q (valid: any, malware, error)", c.FailOn)
	}
	if !slices.Contains(validFormats, c.Format) {
		return fmt.Errorf("invalid format %q (valid: terminal, json, sarif, markdown)", c.Format)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.ChunkSize < 0 || c.Workers < 0 {
		return fmt.Errorf("chunk_size and workers must not be negative")
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
		}
	}
	if c.ChunkSize > pattern.MaxChunkSize {
		return fmt.Errorf("chunk_size %d exceeds the maximum of %d bytes", c.ChunkSize, pattern.MaxChunkSize)
	}
	return nil
}

// Load reads the .shabari.yml or .shabari.yaml config file from the given path.
// If path is a file, its parent directory is used. If no config file is found,
// it returns a zero Config (not an error).
func Load(dir string) (Config, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		if info.Size() > 1<<20 {
			return Config{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	}
	return Config{}, nil
}
