package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "OURAPP_"

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	JWT     JWTConfig     `yaml:"jwt" envPrefix:"JWT_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	APNs    APNsConfig    `yaml:"apns" envPrefix:"APNS_"`
	Daily   DailyConfig   `yaml:"daily" envPrefix:"DAILY_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port" env:"PORT"`
	Host string `yaml:"host" env:"HOST"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret" env:"SECRET"`
}

// StorageConfig selects the persistence providers
type StorageConfig struct {
	Local  LocalStorageConfig  `yaml:"local" envPrefix:"LOCAL_"`
	Remote RemoteStorageConfig `yaml:"remote" envPrefix:"REMOTE_"`
}

// LocalStorageConfig configures the always-present local store
type LocalStorageConfig struct {
	Driver       string        `yaml:"driver" env:"DRIVER"` // memory or sqlite
	Path         string        `yaml:"path" env:"PATH"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// RemoteStorageConfig configures the optional shared store. An empty
// driver means local-only mode.
type RemoteStorageConfig struct {
	Driver       string         `yaml:"driver" env:"DRIVER"` // redis, postgres or s3
	Root         string         `yaml:"root" env:"ROOT"`
	PollInterval time.Duration  `yaml:"poll_interval" env:"POLL_INTERVAL"`
	Redis        RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Database     DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	AWS          AWSConfig      `yaml:"aws" envPrefix:"AWS_"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region" env:"REGION"`
	S3Bucket  string `yaml:"s3_bucket" env:"S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"` // S3-compatible providers
}

// APNsConfig holds Apple push notification settings
type APNsConfig struct {
	Enabled    bool   `yaml:"enabled" env:"ENABLED"`
	KeyFile    string `yaml:"key_file" env:"KEY_FILE"`
	KeyID      string `yaml:"key_id" env:"KEY_ID"`
	TeamID     string `yaml:"team_id" env:"TEAM_ID"`
	Topic      string `yaml:"topic" env:"TOPIC"`
	Production bool   `yaml:"production" env:"PRODUCTION"`
}

// DailyConfig holds daily prompt settings
type DailyConfig struct {
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

// Default returns the configuration used when nothing is set. It has no
// JWT secret, so Load fails until one is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Log:    LogConfig{Level: "info"},
		Storage: StorageConfig{
			Local: LocalStorageConfig{
				Driver:       "memory",
				Path:         "ourapp.db",
				PollInterval: 2 * time.Second,
			},
			Remote: RemoteStorageConfig{
				Root:         "ourapp",
				PollInterval: 3 * time.Second,
				Redis:        RedisConfig{Addr: "localhost:6379"},
				Database:     DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable"},
				AWS:          AWSConfig{Region: "us-east-1"},
			},
		},
		Daily: DailyConfig{Timezone: "Local"},
	}
}

// Load reads configuration from a YAML file and applies environment
// overrides on top. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Local.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown local storage driver %q", c.Storage.Local.Driver)
	}
	switch c.Storage.Remote.Driver {
	case "", "redis", "postgres", "s3":
	default:
		return fmt.Errorf("unknown remote storage driver %q", c.Storage.Remote.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	return nil
}

// Location resolves the configured timezone
func (c *DailyConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
