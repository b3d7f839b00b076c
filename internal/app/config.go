package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the LMS backend.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Licensing LicensingConfig `mapstructure:"licensing"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig describes the primary local database.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// MirrorConfig describes the optional MySQL mirror of the licensing schema.
type MirrorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// LicensingConfig points at the remote licensing server.
type LicensingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ServerURL string `mapstructure:"server_url"`
	Schedule  string `mapstructure:"check_schedule"`
}

// ScannerConfig configures the RFID reader connection.
type ScannerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Device       string        `mapstructure:"device"`
	MaxReconnect int           `mapstructure:"max_reconnect"`
	Backoff      time.Duration `mapstructure:"backoff"`
}

// AuditConfig controls audit log retention.
type AuditConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("LMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/lms.sqlite")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.host", "127.0.0.1")
	v.SetDefault("mirror.port", 3306)

	v.SetDefault("auth.jwt.issuer", "lms")
	v.SetDefault("auth.jwt.access_token_ttl", "8h")

	v.SetDefault("licensing.enabled", false)
	v.SetDefault("licensing.check_schedule", "@every 6h")

	v.SetDefault("scanner.enabled", false)
	v.SetDefault("scanner.max_reconnect", 5)
	v.SetDefault("scanner.backoff", "2s")

	v.SetDefault("audit.retention_days", 365)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
