// Package config loads the skill manager configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAgent          = "skill_robot"
	DefaultTickRate       = 25.0
	DefaultPreemptTimeout = 5 * time.Second
	DefaultHTTPAddr       = ":8080"
	DefaultRedisPrefix    = "skiros:"
	DefaultRedisChannel   = "skiros:monitor"
)

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// HTTP configures the transport.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Redis configures the shared world model. An empty address keeps the
// world model in memory.
type Redis struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	Channel  string   `yaml:"channel"`
	TTL      Duration `yaml:"ttl"`
}

// Enabled reports whether a Redis server is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Config is the skill manager configuration.
type Config struct {
	Agent          string   `yaml:"agent"`
	Prefix         string   `yaml:"prefix"`
	Verbose        bool     `yaml:"verbose"`
	Debug          bool     `yaml:"debug"`
	TickRate       float64  `yaml:"tick_rate"`
	PreemptTimeout Duration `yaml:"preempt_timeout"`
	Libraries      []string `yaml:"libraries"`
	Primitives     []string `yaml:"primitives"`
	Skills         []string `yaml:"skills"`
	HTTP           HTTP     `yaml:"http"`
	Redis          Redis    `yaml:"redis"`
	Log            Log      `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Agent:          DefaultAgent,
		TickRate:       DefaultTickRate,
		PreemptTimeout: Duration(DefaultPreemptTimeout),
		HTTP:           HTTP{Addr: DefaultHTTPAddr},
		Redis:          Redis{Prefix: DefaultRedisPrefix, Channel: DefaultRedisChannel},
		Log:            Log{Level: "info"},
	}
}

// Load reads the file at path over the defaults. Library paths are
// resolved against the directory of the file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, lib := range cfg.Libraries {
		if !filepath.IsAbs(lib) {
			cfg.Libraries[i] = filepath.Join(dir, lib)
		}
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no usable zero value.
func (c Config) Validate() error {
	var errs []error
	if c.Agent == "" {
		errs = append(errs, errors.New("agent must not be empty"))
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate must be positive, got %v", c.TickRate))
	}
	if c.PreemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("preempt_timeout must be positive, got %v", c.PreemptTimeout.Std()))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must not be negative, got %v", c.Redis.TTL.Std()))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AgentName is the agent name qualified by the prefix.
func (c Config) AgentName() string {
	if c.Prefix == "" {
		return c.Agent
	}
	return c.Prefix + ":" + c.Agent
}

// Advertised returns the primitives followed by the skills. Empty means
// every loaded skill is offered.
func (c Config) Advertised() []string {
	out := make([]string, 0, len(c.Primitives)+len(c.Skills))
	out = append(out, c.Primitives...)
	return append(out, c.Skills...)
}
