// Package config loads the server configuration.
//
// Sources, lowest precedence first: Default, a YAML file, environment
// variables, then explicit overrides from the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/remotestore/internal/database"
)

// Environment variables read by ApplyEnv.
const (
	EnvListen      = "RS_LISTEN"
	EnvBackend     = "RS_BACKEND"
	EnvDataDir     = "RS_DATA_DIR"
	EnvTokenSecret = "RS_TOKEN_SECRET"
	EnvTokenTTL    = "RS_TOKEN_TTL"
	EnvVerbosity   = "RS_VERBOSITY"
)

// Config holds all runtime configuration for the server.
type Config struct {
	Listen          string        `yaml:"listen"`
	Backend         string        `yaml:"backend"`
	DataDir         string        `yaml:"data_dir"`
	TokenSecret     string        `yaml:"token_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	Verbosity       int           `yaml:"verbosity"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          ":8080",
		Backend:         database.BackendMemory,
		TokenTTL:        24 * time.Hour,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays every variable that getenv reports as non-empty.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvTokenSecret); v != "" {
		c.TokenSecret = v
	}
	if v := getenv(EnvTokenTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTokenTTL, err)
		}
		c.TokenTTL = ttl
	}
	if v := getenv(EnvVerbosity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVerbosity, err)
		}
		c.Verbosity = n
	}
	return nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if !slices.Contains(database.Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("unknown backend %q (want one of %v)", c.Backend, database.Backends))
	}
	if c.Backend == database.BackendFolder && c.DataDir == "" {
		errs = append(errs, errors.New("folder backend needs data_dir"))
	}
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("token secret is empty"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Verbosity < 0 {
		errs = append(errs, errors.New("verbosity must not be negative"))
	}
	return errors.Join(errs...)
}
