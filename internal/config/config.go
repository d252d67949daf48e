// Package config loads habitlab.yaml, creating it with defaults on first run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/habitlab/internal/logging"
)

type Config struct {
	UserID        string        `yaml:"user_id"`
	DBPath        string        `yaml:"db_path"`
	Timezone      string        `yaml:"timezone"`
	Log           Log           `yaml:"log"`
	Notifications Notifications `yaml:"notifications"`
	Server        Server        `yaml:"server"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Notifications struct {
	Title         string  `yaml:"title"`
	Body          string  `yaml:"body"`
	URL           string  `yaml:"url"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Dir is the directory holding config, database and log.
func Dir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("find config directory: %w", err)
	}
	return filepath.Join(cfg, "habitlab"), nil
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns a config with a fresh user id, rooted at dir.
func Default(dir string) Config {
	return Config{
		UserID:   uuid.NewString(),
		DBPath:   filepath.Join(dir, "habitlab.db"),
		Timezone: "Local",
		Log: Log{
			Level: "info",
			File:  filepath.Join(dir, "habitlab.log"),
		},
		Notifications: Notifications{
			Title:         "Time for your experiment",
			Body:          "Have you done today's action? Record how it went.",
			URL:           "/record",
			RatePerSecond: 10,
			Burst:         5,
		},
		Server: Server{Addr: "127.0.0.1:8470"},
	}
}

// Load reads the config at path, writing the defaults there first when the
// file does not exist. Missing fields take their default values.
func Load(path string) (Config, bool, error) {
	dir := filepath.Dir(path)
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return Config{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, created, fmt.Errorf("read config: %w", err)
	}
	cfg := Default(dir)
	cfg.UserID = ""
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, created, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, created, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, created, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default(filepath.Dir(path)))
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Notifications.RatePerSecond <= 0 {
		errs = append(errs, errors.New("notifications.rate_per_second must be positive"))
	}
	if c.Notifications.Burst < 1 {
		errs = append(errs, errors.New("notifications.burst must be at least 1"))
	}
	return errors.Join(errs...)
}

// Location resolves Timezone. Empty and "Local" mean the system zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", c.Timezone)
	}
	return loc, nil
}
