package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Poll     PollConfig     `mapstructure:"poll"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	// Dir is the directory holding registry databases.
	Dir string `mapstructure:"dir"`
	// Name is the database name, excluding the .db suffix.
	Name string `mapstructure:"name"`
	// Table is the run table for this project.
	Table string `mapstructure:"table"`
}

type PollConfig struct {
	// Interval is the fixed polling interval of watch loops.
	Interval time.Duration `mapstructure:"interval"`

	// MaxStatusRate bounds reconciliation passes per second across the
	// whole registry. Zero leaves status checks unbounded.
	MaxStatusRate float64 `mapstructure:"max_status_rate"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Path returns the resolved database file path.
func (d DatabaseConfig) Path() string {
	return filepath.Join(d.Dir, d.Name+".db")
}

// Load resolves configuration from defaults, an optional simtrack.yaml
// (current directory, then the data dir), and SIMTRACK_* environment
// variables, in increasing precedence.
func Load(ctx context.Context) (*Config, error) {
	_ = ctx

	v := viper.New()

	v.SetDefault("database.dir", defaultDataDir())
	v.SetDefault("database.name", "runs")
	v.SetDefault("database.table", "run")
	v.SetDefault("poll.interval", 5*time.Second)
	v.SetDefault("poll.max_status_rate", 0.0)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")

	v.SetConfigName("simtrack")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(defaultDataDir())

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is a real failure.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SIMTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Poll.Interval <= 0 {
		return nil, fmt.Errorf("poll.interval must be positive, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.MaxStatusRate < 0 {
		return nil, fmt.Errorf("poll.max_status_rate must not be negative, got %g", cfg.Poll.MaxStatusRate)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".simtrack"
	}
	return filepath.Join(home, ".simtrack")
}
