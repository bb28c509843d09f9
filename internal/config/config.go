// Package config loads the recjson command line configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xdg-go/recjson/internal/logging"
	"github.com/xdg-go/recjson/store"
)

// Config represents the recjson configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Store   Store   `yaml:"store"`
	Decode  Decode  `yaml:"decode"`
	Format  string  `yaml:"format"`
	Import  Import  `yaml:"import"`
	Logging Logging `yaml:"logging"`
}

// Store contains database settings
type Store struct {
	File        string        `yaml:"file"`
	Backend     string        `yaml:"backend"`
	Codec       string        `yaml:"codec"`
	Compression string        `yaml:"compression"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// Decode contains parser settings
type Decode struct {
	MaxDepth int  `yaml:"max_depth"`
	Lenient  bool `yaml:"lenient"`
	ExtJSON  bool `yaml:"ext_json"`
}

// Import contains bulk import settings
type Import struct {
	Jobs int `yaml:"jobs"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Store: Store{
			File:        "records.db",
			Backend:     store.BackendBolt,
			Codec:       "bson",
			Compression: "none",
			LockTimeout: 5 * time.Second,
		},
		Decode: Decode{
			MaxDepth: 200,
		},
		Format: "rid,version,class,type,keepTypes",
		Import: Import{
			Jobs: 4,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path.  Settings missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	if _, err := c.StoreOptions(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Import.Jobs < 1 {
		return fmt.Errorf("import jobs must be at least 1, got %d", c.Import.Jobs)
	}
	if c.Decode.MaxDepth < 1 {
		return fmt.Errorf("max depth must be at least 1, got %d", c.Decode.MaxDepth)
	}
	return nil
}

// DBPath returns the path of the database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.Store.File)
}

// StoreOptions converts the store settings.
func (c *Config) StoreOptions() (store.Options, error) {
	codec, err := store.ParseCodec(c.Store.Codec)
	if err != nil {
		return store.Options{}, err
	}
	compression, err := store.ParseCompression(c.Store.Compression)
	if err != nil {
		return store.Options{}, err
	}
	switch c.Store.Backend {
	case "", store.BackendBolt, store.BackendMem:
	default:
		return store.Options{}, fmt.Errorf("unknown backend %q", c.Store.Backend)
	}
	return store.Options{
		Backend:     c.Store.Backend,
		Codec:       codec,
		Compression: compression,
		Timeout:     c.Store.LockTimeout,
	}, nil
}

// Logger returns a logger writing to w as configured.
func (c *Config) Logger(w io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	if c.Logging.Format == "json" {
		return logging.NewJSONLogger(w, level), nil
	}
	return logging.NewTextLogger(w, level), nil
}
