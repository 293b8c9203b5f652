// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/maxnet-vpn/maxnet/internal/shared/config"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server"`
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	WireGuard sharedConfig.WireGuardConfig `mapstructure:"wireguard"`
	Webhook   sharedConfig.WebhookConfig   `mapstructure:"webhook"`
	Telegram  sharedConfig.TelegramConfig  `mapstructure:"telegram"`
	Jobs      sharedConfig.JobsConfig      `mapstructure:"jobs"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from configs/config.yaml and MAXNET_* environment
// variables. An explicit env argument overrides server.mode.
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("MAXNET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "maxnet")
	viper.SetDefault("database.password", "maxnet")
	viper.SetDefault("database.database", "maxnet_dev")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// WireGuard defaults
	viper.SetDefault("wireguard.interface_name", "wg0")
	viper.SetDefault("wireguard.config_path", "/etc/wireguard/wg0.conf")
	viper.SetDefault("wireguard.client_network", "10.8.0.0/24")
	viper.SetDefault("wireguard.server_address", "10.8.0.1")
	viper.SetDefault("wireguard.client_dns", "1.1.1.1")
	viper.SetDefault("wireguard.control_timeout_seconds", 10)

	// Job defaults
	viper.SetDefault("jobs.expiry_interval_seconds", 60)
	viper.SetDefault("jobs.reminder_interval_seconds", 3600)
	viper.SetDefault("jobs.reminder_lead_hours", 72)
}
