package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host            string        `json:"host" yaml:"host"`
		Port            int           `json:"port" yaml:"port" validate:"min=1,max=65535"`
		ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	} `json:"server" yaml:"server"`

	Storage struct {
		Backend  string `json:"backend" yaml:"backend" validate:"oneof=fs badger memory"`
		Root     string `json:"root" yaml:"root" validate:"required_if=Backend fs"`
		Path     string `json:"path" yaml:"path"`
		InMemory bool   `json:"in_memory" yaml:"in_memory"`

		CacheSize   int `json:"cache_size" yaml:"cache_size" validate:"gte=0"`
		Compression struct {
			MinSize int `json:"min_size" yaml:"min_size" validate:"gte=0"`
			Level   int `json:"level" yaml:"level" validate:"min=1,max=4"`
		} `json:"compression" yaml:"compression"`
	} `json:"storage" yaml:"storage"`

	Diff struct {
		ContextLines int `json:"context_lines" yaml:"context_lines" validate:"gte=0"`
	} `json:"diff" yaml:"diff"`

	Watch struct {
		Enabled    bool          `json:"enabled" yaml:"enabled"`
		IgnoreDirs []string      `json:"ignore_dirs" yaml:"ignore_dirs"`
		Debounce   time.Duration `json:"debounce" yaml:"debounce" validate:"gte=0"`
	} `json:"watch" yaml:"watch"`

	Environment string `json:"environment" yaml:"environment"`                                           // development, production
	LogLevel    string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Server.Host = "localhost"
	c.Server.Port = 8080
	c.Server.ShutdownTimeout = 10 * time.Second

	c.Storage.Backend = "fs"
	c.Storage.Root = "."
	c.Storage.Path = ".filevc/db"
	c.Storage.CacheSize = 1024
	c.Storage.Compression.MinSize = 512
	c.Storage.Compression.Level = 2

	c.Diff.ContextLines = 3

	c.Watch.Enabled = true
	c.Watch.IgnoreDirs = []string{".git", ".filevc", "node_modules", "vendor", "dist", "build"}
	c.Watch.Debounce = 200 * time.Millisecond

	c.Environment = "development"
	c.LogLevel = "info"
	return &c
}

// Path returns the config file selected by FILEVC_ENV
func Path() string {
	env := os.Getenv("FILEVC_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// Load reads a JSON or YAML file (by extension) over the defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
