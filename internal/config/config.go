// Package config holds the explicit configuration passed to every component
// at construction time.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/angelstreet/navtree/internal/rules"
)

// DefaultPath is read when no --config flag is given and the file exists.
const DefaultPath = "navtree.yaml"

// Config is the full runtime configuration.
type Config struct {
	TeamID          string       `yaml:"team_id"           json:"team_id"`
	DBPath          string       `yaml:"db_path"           json:"db_path"`
	RulePolicy      string       `yaml:"rule_policy"       json:"rule_policy"`
	MaxDisplayDepth int          `yaml:"max_display_depth" json:"max_display_depth"`
	Device          DeviceConfig `yaml:"device"            json:"device"`
	Run             RunConfig    `yaml:"run"               json:"run"`
	Log             LogConfig    `yaml:"log"               json:"log"`
	Serve           ServeConfig  `yaml:"serve"             json:"serve"`
}

// DeviceConfig selects the device backend and the device runs target.
type DeviceConfig struct {
	Backend       string        `yaml:"backend"                  json:"backend"`
	BaseURL       string        `yaml:"base_url"                 json:"base_url"`
	Host          string        `yaml:"host"                     json:"host"`
	ID            string        `yaml:"id"                       json:"id"`
	Timeout       time.Duration `yaml:"timeout"                  json:"timeout"`
	ReferenceDir  string        `yaml:"reference_dir,omitempty"  json:"reference_dir,omitempty"`
	AnnotationDir string        `yaml:"annotation_dir,omitempty" json:"annotation_dir,omitempty"`
}

// RunConfig tunes goto and edge runs.
type RunConfig struct {
	StepDelay time.Duration `yaml:"step_delay" json:"step_delay"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"`
	Format string `yaml:"format" json:"format"`
}

// ServeConfig configures the MCP server.
type ServeConfig struct {
	Transport string        `yaml:"transport" json:"transport"`
	Port      int           `yaml:"port"      json:"port"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		TeamID:          "default",
		DBPath:          "navtree.db",
		RulePolicy:      rules.PolicyMenu,
		MaxDisplayDepth: 3,
		Device: DeviceConfig{
			Backend: "http",
			Timeout: 60 * time.Second,
		},
		Run: RunConfig{StepDelay: time.Second},
		Log: LogConfig{Level: "info", Format: "text"},
		Serve: ServeConfig{
			Transport: "stdio",
			Port:      8080,
			CacheTTL:  5 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file is only an error when
// required is true.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.TeamID) == "" {
		errs = append(errs, fmt.Errorf("team_id is required"))
	}
	if _, err := rules.ForName(c.RulePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.MaxDisplayDepth < 1 {
		errs = append(errs, fmt.Errorf("max_display_depth must be >= 1, got %d", c.MaxDisplayDepth))
	}
	if c.Run.StepDelay < 0 {
		errs = append(errs, fmt.Errorf("run.step_delay must not be negative"))
	}
	if c.Device.Timeout < 0 {
		errs = append(errs, fmt.Errorf("device.timeout must not be negative"))
	}
	if c.Serve.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("serve.cache_ttl must not be negative"))
	}
	switch c.Serve.Transport {
	case "stdio", "http", "streamable-http":
	default:
		errs = append(errs, fmt.Errorf("serve.transport must be stdio or streamable-http, got %q", c.Serve.Transport))
	}
	return errors.Join(errs...)
}

// DeviceTarget returns the configured host and device as "host/device".
func (c Config) DeviceTarget() string {
	if c.Device.ID == "" {
		return c.Device.Host
	}
	return c.Device.Host + "/" + c.Device.ID
}
