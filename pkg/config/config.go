// Package config loads the warden configuration file.
//
// The file is YAML, or JSON when its extension is ".json". Durations are
// written as Go duration strings ("1s", "250ms").
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/warden/pkg/component"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Log     LogConfig      `mapstructure:"log"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Scripts []string       `mapstructure:"scripts"`
	Drivers []DriverConfig `mapstructure:"drivers"`

	// Dir is the directory of the loaded file. Relative script paths resolve against it.
	Dir string `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig enables the signal bridge and, with Lock, the name lease.
// An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Channel  string        `mapstructure:"channel"`
	Lock     bool          `mapstructure:"lock"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// DriverConfig declares one supervised component.
type DriverConfig struct {
	Name      string                 `mapstructure:"name"`
	Component string                 `mapstructure:"component"`
	KeepAlive domain.KeepAlivePolicy `mapstructure:"keep_alive"`
	Env       map[string]string      `mapstructure:"env"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := "yaml"
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		format = "json"
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes data in the given format ("yaml" or "json") over Default().
func Parse(data []byte, format string) (*Config, error) {
	raw := make(map[string]any)
	switch format {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural rules: every driver has a name and a component,
// and names are unique.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Drivers))
	for i, d := range c.Drivers {
		switch {
		case d.Name == "":
			errs = append(errs, fmt.Errorf("drivers[%d]: name is required", i))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("drivers[%d]: %w: %s", i, domain.ErrDuplicateDriver, d.Name))
		}
		seen[d.Name] = true

		if d.Component == "" {
			errs = append(errs, fmt.Errorf("drivers[%d]: component is required", i))
		}
		if d.KeepAlive.Interval < 0 {
			errs = append(errs, fmt.Errorf("drivers[%d]: keep_alive.interval must not be negative", i))
		}
	}
	if c.Redis.LeaseTTL < 0 {
		errs = append(errs, errors.New("redis.lease_ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// CheckComponents verifies that every driver names a registered component.
// It runs at start, once the binary's components are registered.
func (c *Config) CheckComponents() error {
	var errs []error
	for _, d := range c.Drivers {
		if _, err := component.Lookup(d.Component); err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ScriptPaths returns the script files with relative paths resolved against Dir.
func (c *Config) ScriptPaths() []string {
	paths := make([]string, 0, len(c.Scripts))
	for _, p := range c.Scripts {
		if !filepath.IsAbs(p) && c.Dir != "" {
			p = filepath.Join(c.Dir, p)
		}
		paths = append(paths, p)
	}
	return paths
}
