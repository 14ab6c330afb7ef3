// Package config loads process configuration from the environment,
// optionally seeded from a .env file in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-resolved process configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Log      LogConfig
	Metrics  MetricsConfig
	CORS     CORSConfig
	AE       AEConfig
}

// ServerConfig is the admin/health HTTP surface.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig is the Postgres connection used for the remote-AE
// directory and association audit log.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

// RedisConfig backs the query-result cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects the query-cache backend.
type CacheConfig struct {
	Enabled bool
	Type    string // "redis" or "memory"
}

// LogConfig configures zerolog's global level/output.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool
}

// CORSConfig configures the admin HTTP surface's CORS policy.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// AEConfig is the local Application Entity's DICOM network policy
// (spec §4.E construction parameters).
type AEConfig struct {
	Title               string
	ListenHost          string
	ListenPort           int
	MaxPDULength         uint32
	MaxAssociations      int
	ACSETimeout          time.Duration
	DIMSETimeout         time.Duration
	IdleTimeout          time.Duration
	RequiredCallingAET   string
	RequiredCalledAET    string
	ImplementationClassUID string
	ImplementationVersion  string
}

// Load reads a .env file if present (ignored if absent, since
// production deployments set real environment variables) and resolves
// Config from the environment, applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "dicom_connector"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "memory"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
		},
		AE: AEConfig{
			Title:                  getEnv("AE_TITLE", "RISCONNECTOR"),
			ListenHost:             getEnv("AE_LISTEN_HOST", "0.0.0.0"),
			ListenPort:             getEnvInt("AE_LISTEN_PORT", 11112),
			MaxPDULength:           uint32(getEnvInt("AE_MAX_PDU_LENGTH", 16384)),
			MaxAssociations:        getEnvInt("AE_MAX_ASSOCIATIONS", 25),
			ACSETimeout:            getEnvDuration("AE_ACSE_TIMEOUT", 30*time.Second),
			DIMSETimeout:           getEnvDuration("AE_DIMSE_TIMEOUT", 30*time.Second),
			IdleTimeout:            getEnvDuration("AE_IDLE_TIMEOUT", 60*time.Second),
			RequiredCallingAET:     getEnv("AE_REQUIRED_CALLING_AET", ""),
			RequiredCalledAET:      getEnv("AE_REQUIRED_CALLED_AET", ""),
			ImplementationClassUID: getEnv("AE_IMPLEMENTATION_CLASS_UID", "1.2.826.0.1.3680043.8.498.1"),
			ImplementationVersion:  getEnv("AE_IMPLEMENTATION_VERSION", "RISCONN_1"),
		},
	}
	return cfg, nil
}

// Validate rejects configurations that would otherwise fail later in
// a confusing way.
func (c *Config) Validate() error {
	if c.AE.Title == "" {
		return fmt.Errorf("AE_TITLE must not be empty")
	}
	if len(c.AE.Title) > 16 {
		return fmt.Errorf("AE_TITLE %q exceeds the 16-byte AE title limit", c.AE.Title)
	}
	if c.AE.ListenPort <= 0 || c.AE.ListenPort > 65535 {
		return fmt.Errorf("AE_LISTEN_PORT %d out of range", c.AE.ListenPort)
	}
	if c.Cache.Type != "redis" && c.Cache.Type != "memory" {
		return fmt.Errorf("CACHE_TYPE must be \"redis\" or \"memory\", got %q", c.Cache.Type)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
