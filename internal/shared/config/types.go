// Package config defines the typed configuration structures shared across the
// application. Values are populated by the infrastructure config loader.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Mode       string `mapstructure:"mode"`
	AdminToken string `mapstructure:"admin_token"`
}

// GetAddr returns the listen address in host:port form.
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GetAddr returns the Redis address in host:port form.
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// WireGuardConfig holds settings for the managed WireGuard interface and the
// address pool carved out of its client network.
type WireGuardConfig struct {
	InterfaceName   string `mapstructure:"interface_name"`
	ConfigPath      string `mapstructure:"config_path"`
	ClientNetwork   string `mapstructure:"client_network"`
	ServerAddress   string `mapstructure:"server_address"`
	ServerPublicKey string `mapstructure:"server_public_key"`
	ServerEndpoint  string `mapstructure:"server_endpoint"`
	ClientDNS       string `mapstructure:"client_dns"`
	ControlTimeout  int    `mapstructure:"control_timeout_seconds"`
}

// ControlTimeoutDuration returns the bound on a single daemon control call.
func (c *WireGuardConfig) ControlTimeoutDuration() time.Duration {
	if c.ControlTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ControlTimeout) * time.Second
}

// WebhookConfig holds inbound webhook settings.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// TelegramConfig holds settings for the Telegram notification sender.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	ExpiryInterval   int `mapstructure:"expiry_interval_seconds"`
	ReminderInterval int `mapstructure:"reminder_interval_seconds"`
	ReminderLeadTime int `mapstructure:"reminder_lead_hours"`
}

// ExpiryIntervalDuration returns the expiry sweep interval.
func (c *JobsConfig) ExpiryIntervalDuration() time.Duration {
	if c.ExpiryInterval <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ExpiryInterval) * time.Second
}

// ReminderIntervalDuration returns the reminder sweep interval.
func (c *JobsConfig) ReminderIntervalDuration() time.Duration {
	if c.ReminderInterval <= 0 {
		return time.Hour
	}
	return time.Duration(c.ReminderInterval) * time.Second
}

// ReminderLeadDuration returns how long before expiry a reminder is sent.
func (c *JobsConfig) ReminderLeadDuration() time.Duration {
	if c.ReminderLeadTime <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.ReminderLeadTime) * time.Hour
}
