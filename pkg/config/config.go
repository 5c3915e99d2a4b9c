package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Web       WebConfig       `mapstructure:"web"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds daemon identification
type ServerConfig struct {
	Name     string `mapstructure:"name"`
	DeviceID string `mapstructure:"device_id"` // Generated and persisted on first run when empty
}

// TransportConfig holds the device transport listener configuration
type TransportConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	MTU  int    `mapstructure:"mtu"` // Target MTU for packet-oriented links
}

// WebConfig holds the pairing-approval / control API configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig holds SQLite storage configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CommandsConfig holds voice command processing configuration
type CommandsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	HistoryEnabled bool `mapstructure:"history_enabled"`
	HistoryDays    int  `mapstructure:"history_days"` // Entries older than this are pruned
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/echotype")
	}

	viper.SetEnvPrefix("ECHOTYPE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.name", "EchoType")

	// Transport defaults
	viper.SetDefault("transport.host", "0.0.0.0")
	viper.SetDefault("transport.port", 7010)
	viper.SetDefault("transport.mtu", 512)

	// Web defaults
	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "127.0.0.1")
	viper.SetDefault("web.port", 7011)

	// Database defaults
	viper.SetDefault("database.path", "echotype.db")

	// Command defaults
	viper.SetDefault("commands.enabled", true)
	viper.SetDefault("commands.history_enabled", true)
	viper.SetDefault("commands.history_days", 30)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}

// validate checks configuration consistency
func validate(cfg *Config) error {
	if cfg.Transport.Port < 0 || cfg.Transport.Port > 65535 {
		return fmt.Errorf("invalid transport port: %d", cfg.Transport.Port)
	}
	if cfg.Web.Enabled && (cfg.Web.Port < 0 || cfg.Web.Port > 65535) {
		return fmt.Errorf("invalid web port: %d", cfg.Web.Port)
	}
	if cfg.Transport.MTU < 23 {
		return fmt.Errorf("transport mtu %d below protocol minimum 23", cfg.Transport.MTU)
	}
	if cfg.Commands.HistoryDays < 0 {
		return fmt.Errorf("invalid history retention: %d days", cfg.Commands.HistoryDays)
	}
	return nil
}
