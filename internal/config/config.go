// Package config provides application configuration loaded from
// environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	ServiceLayer ServiceLayerConfig
	App          AppConfig
}

// ServerConfig holds HTTP server settings for the local portal.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// ServiceLayerConfig holds the remote OData backend settings.
type ServiceLayerConfig struct {
	BaseURL   string
	CompanyDB string // optional login form prefill
}

// AppConfig holds application-level settings.
type AppConfig struct {
	StateDSN        string
	PageSize        int
	FallbackDocDate string
	LogoutFailOpen  bool
	SessionSecret   string
	CSRFSecret      string
}

// Load reads configuration from environment variables with defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		ServiceLayer: ServiceLayerConfig{
			BaseURL:   getEnv("SERVICE_LAYER_URL", "https://localhost:50000/b1s/v1"),
			CompanyDB: getEnv("COMPANY_DB", ""),
		},
		App: AppConfig{
			StateDSN: getEnv("STATE_DSN", "portal.db"),
			PageSize: getEnvInt("PAGE_SIZE", 20),
			// Used only when the open posting period lookup fails.
			FallbackDocDate: getEnv("FALLBACK_DOC_DATE", "2025-06-30"),
			LogoutFailOpen:  getEnvBool("LOGOUT_FAIL_OPEN", true),
			SessionSecret:   getEnv("SESSION_SECRET", "devsessionsecret"),
			CSRFSecret:      getEnv("CSRF_SECRET", "devcsrfsecret-32-bytes-padding!!"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a
// default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a
// default. Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
