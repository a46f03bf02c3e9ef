package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds the HTTP listener settings.
type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Log selects the zap level and encoding.
type Log struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json or console
}

// Sweep bounds the work a single sweep request may trigger.
type Sweep struct {
	Workers    int `yaml:"workers"`
	MaxSamples int `yaml:"max_samples"`
}

// Config is the API server configuration.
type Config struct {
	Server Server `yaml:"server"`
	Log    Log    `yaml:"log"`
	Sweep  Sweep  `yaml:"sweep"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
		Log:    Log{Level: "info", Encoding: "json"},
		Sweep:  Sweep{Workers: 4, MaxSamples: 100000},
	}
}

// Load reads a YAML file on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses YAML from r, keeping defaults for absent keys.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration can start a server.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log encoding %q", c.Log.Encoding)
	}
	if c.Sweep.Workers <= 0 {
		return errors.New("sweep.workers must be positive")
	}
	if c.Sweep.MaxSamples <= 0 {
		return errors.New("sweep.max_samples must be positive")
	}
	return nil
}
