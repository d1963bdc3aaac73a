// Package config loads application configuration from the environment and an
// optional .env file using Viper. Configuration is read once at startup and
// treated as immutable afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds every process-wide setting.
type Config struct {
	// ServicePort is the HTTP listen port.
	ServicePort int `mapstructure:"SERVICE_PORT"`
	// AppEnv is the deployment environment ("development", "production").
	AppEnv string `mapstructure:"APP_ENV"`

	MySQLHost     string `mapstructure:"MYSQL_HOST"`
	MySQLPort     int    `mapstructure:"MYSQL_PORT"`
	MySQLUsername string `mapstructure:"MYSQL_USERNAME"`
	MySQLPassword string `mapstructure:"MYSQL_PASSWORD"`
	MySQLDatabase string `mapstructure:"MYSQL_DATABASE"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTSecret signs session credentials. The dev fallback must never
	// reach production.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTTTLSeconds is the session lifetime; non-positive values fall back
	// to 7200.
	JWTTTLSeconds int `mapstructure:"JWT_TTL_SECONDS"`

	WechatAppID  string `mapstructure:"WECHAT_APPID"`
	WechatSecret string `mapstructure:"WECHAT_SECRET"`

	RabbitMQHost     string `mapstructure:"RABBITMQ_HOST"`
	RabbitMQPort     int    `mapstructure:"RABBITMQ_PORT"`
	RabbitMQUsername string `mapstructure:"RABBITMQ_USERNAME"`
	RabbitMQPassword string `mapstructure:"RABBITMQ_PASSWORD"`
}

const defaultTTLSeconds = 7200

// Load reads .env (if present), then builds Config from the environment.
// Env vars override .env; a missing .env is ignored.
func Load() (*Config, error) {
	v := viper.New()
	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parse .env: %w", err)
		}
	}
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", 9000)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("MYSQL_HOST", "localhost")
	v.SetDefault("MYSQL_PORT", 3306)
	v.SetDefault("MYSQL_USERNAME", "")
	v.SetDefault("MYSQL_PASSWORD", "")
	v.SetDefault("MYSQL_DATABASE", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "dev-secret")
	v.SetDefault("JWT_TTL_SECONDS", defaultTTLSeconds)
	v.SetDefault("WECHAT_APPID", "")
	v.SetDefault("WECHAT_SECRET", "")
	v.SetDefault("RABBITMQ_HOST", "")
	v.SetDefault("RABBITMQ_PORT", 5672)
	v.SetDefault("RABBITMQ_USERNAME", "guest")
	v.SetDefault("RABBITMQ_PASSWORD", "guest")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("invalid SERVICE_PORT %d", c.ServicePort)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.AppEnv == "production" && c.JWTSecret == "dev-secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServicePort)
}

// RedisAddr is the host:port of the session store backend.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN builds the gorm/mysql connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.MySQLUsername, c.MySQLPassword, c.MySQLHost, c.MySQLPort, c.MySQLDatabase)
}

// JWTTTL is the effective session lifetime, falling back to 7200s whenever
// the configured value is missing or non-positive.
func (c *Config) JWTTTL() time.Duration {
	if c.JWTTTLSeconds <= 0 {
		return defaultTTLSeconds * time.Second
	}
	return time.Duration(c.JWTTTLSeconds) * time.Second
}

// AMQPURI is the broker connection string, or "" when events are disabled.
func (c *Config) AMQPURI() string {
	if c.RabbitMQHost == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d",
		c.RabbitMQUsername, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}
