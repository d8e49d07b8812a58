// Package config loads the textdex gateway configuration from
// environment-named YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the textdex gateway configuration.
type Config struct {
	HTTP     HTTPConfig      `yaml:"http"`
	Backend  BackendConfig   `yaml:"backend"`
	Scroll   ScrollConfig    `yaml:"scroll"`
	Search   SearchConfig    `yaml:"search"`
	Cache    CacheConfig     `yaml:"cache"`
	Mappings []MappingConfig `yaml:"mappings"`
	Auth     AuthConfig      `yaml:"auth"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig holds search backend connection settings.
type BackendConfig struct {
	// Driver selects the index backend: elastic (remote cluster) or
	// sqlite (embedded FTS engine).
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Path       string `yaml:"path"` // sqlite database file
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ScrollConfig holds cursor-iteration settings.
type ScrollConfig struct {
	FetchSize          int `yaml:"fetch_size"`
	BacktrackingWindow int `yaml:"backtracking_window"`
	KeepAliveSec       int `yaml:"keepalive_sec"`
}

// SearchConfig holds query execution settings.
type SearchConfig struct {
	DefaultTimeoutSec int `yaml:"default_timeout_sec"` // 0 = unlimited
	MaxResultWindow   int `yaml:"max_result_window"`
}

// CacheConfig holds the optional Redis response cache settings.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
}

// MappingConfig binds one document type to an index.
type MappingConfig struct {
	Type       string        `yaml:"type"`
	Index      string        `yaml:"index"`
	Connection string        `yaml:"connection"`
	Fields     []FieldConfig `yaml:"fields"`
}

// FieldConfig describes one indexed field of a mapped type.
type FieldConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // keyword, text, int, float, bool, time, geo
	Sortable  bool   `yaml:"sortable"`
	Facetable bool   `yaml:"facetable"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = "sqlite"
	}
	if c.Backend.Path == "" {
		c.Backend.Path = "textdex.db"
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 30
	}
	if c.Scroll.FetchSize <= 0 {
		c.Scroll.FetchSize = 1000
	}
	if c.Scroll.BacktrackingWindow <= 0 {
		c.Scroll.BacktrackingWindow = 1000
	}
	if c.Scroll.KeepAliveSec <= 0 {
		c.Scroll.KeepAliveSec = 60
	}
	if c.Search.MaxResultWindow <= 0 {
		c.Search.MaxResultWindow = 10000
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Backend.Driver {
	case "elastic":
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for the elastic driver")
		}
	case "sqlite":
		if c.Backend.Path == "" {
			return fmt.Errorf("backend.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("backend.driver must be \"elastic\" or \"sqlite\", got %q", c.Backend.Driver)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache.enabled is set")
	}
	for i, m := range c.Mappings {
		if m.Type == "" {
			return fmt.Errorf("mappings[%d].type is required", i)
		}
		if m.Index != "" && m.Connection == "" {
			return fmt.Errorf("mappings[%d].connection is required for indexed type %q", i, m.Type)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
