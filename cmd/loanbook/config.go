package main

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Store   StoreConfig  `yaml:"store"`
		Logger  LoggerConfig `yaml:"logger"`
		Legacy  LegacyConfig `yaml:"legacy"`
		Company string       `yaml:"company"` // default tenant for reports
		Locale  string       `yaml:"locale"`  // number formatting, e.g. en-IN
	}

	StoreConfig struct {
		Path    string        `yaml:"path"`
		Timeout time.Duration `yaml:"timeout"` // how long to wait for the file lock
		Verbose bool          `yaml:"verbose"` // log every store operation at debug level
	}

	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		FilePath   string `yaml:"file_path"`   // log to a rotated file instead of stderr
		MaxSize    int    `yaml:"max_size"`    // megabytes
		MaxBackups int    `yaml:"max_backups"` // rotated files to keep
		MaxAge     int    `yaml:"max_age"`     // days
		Compress   bool   `yaml:"compress"`
	}

	LegacyConfig struct {
		Dir              string `yaml:"dir"`
		DefaultCompanyID string `yaml:"default_company_id"`
	}
)

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Path:    "loanbook.db",
			Timeout: 5 * time.Second,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
		},
		Locale: "en-IN",
	}
}

// LoadConfig reads the YAML config with ${ENV:default} placeholders resolved.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	} else if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(resolveEnv(data), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envPlaceholderRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

func resolveEnv(content []byte) []byte {
	return envPlaceholderRe.ReplaceAllFunc(content, func(match []byte) []byte {
		m := envPlaceholderRe.FindSubmatch(match)
		if value, ok := os.LookupEnv(string(m[1])); ok {
			return []byte(value)
		}
		return m[2]
	})
}
