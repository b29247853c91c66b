package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port int    `json:"port"`
	Host string `json:"host"`

	// QuickBooks OAuth configuration
	QuickBooksClientID     string `json:"quickbooks_client_id"`
	QuickBooksClientSecret string `json:"quickbooks_client_secret"`
	QuickBooksRedirectURI  string `json:"quickbooks_redirect_uri"`
	QuickBooksSandboxURL   string `json:"quickbooks_sandbox_url"`
	QuickBooksAuthURL      string `json:"quickbooks_auth_url"`
	QuickBooksTokenURL     string `json:"quickbooks_token_url"`
	QuickBooksScope        string `json:"quickbooks_scope"`
	QuickBooksState        string `json:"quickbooks_state"`
	QuickBooksRealmID      string `json:"quickbooks_sandbox_realm_id"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBPath     string `json:"db_path"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBSSLMode  string `json:"db_ssl_mode"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret           string `json:"jwt_secret"`
	RequireServiceToken bool   `json:"require_service_token"`

	// Observability Configuration
	SentryDSN string `json:"sentry_dsn"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, QuickBooksClientID: %s, QuickBooksClientSecret: [REDACTED], QuickBooksRedirectURI: %s, QuickBooksSandboxURL: %s, QuickBooksRealmID: %s, DBDriver: %s, LogLevel: %s, JWTSecret: [REDACTED]}",
		c.Port, c.Host, c.QuickBooksClientID, c.QuickBooksRedirectURI, c.QuickBooksSandboxURL, c.QuickBooksRealmID, c.DBDriver, c.LogLevel)
}

// requiredVars are the QuickBooks settings the service cannot run without.
// Missing any of them is a startup-time failure.
var requiredVars = []string{
	"QUICKBOOKS_CLIENT_ID",
	"QUICKBOOKS_CLIENT_SECRET",
	"QUICKBOOKS_REDIRECT_URI",
	"QUICKBOOKS_SANDBOX_URL",
	"QUICKBOOKS_AUTH_URL",
	"QUICKBOOKS_TOKEN_URL",
	"QUICKBOOKS_SCOPE",
	"QUICKBOOKS_SANDBOX_REALM_ID",
}

// LoadConfig reads the proper configuration from environment variables and returns a Config struct
// It also validates URL-shaped settings and reports every missing required variable at once.
// Returns an error if any required environment variable is missing or invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range requiredVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	for _, name := range []string{"QUICKBOOKS_REDIRECT_URI", "QUICKBOOKS_SANDBOX_URL", "QUICKBOOKS_AUTH_URL", "QUICKBOOKS_TOKEN_URL"} {
		if _, err := url.ParseRequestURI(os.Getenv(name)); err != nil {
			return nil, fmt.Errorf("invalid %s format: %w", name, err)
		}
	}

	// The anti-forgery state must be non-empty; generate one when not pinned
	// by the environment.
	state := GetEnvWithDefault("QUICKBOOKS_STATE", "")
	if state == "" {
		state = uuid.NewString()
	}

	config := &Config{
		Port: port,
		Host: GetEnvWithDefault("APP_HOST", "localhost"),

		QuickBooksClientID:     os.Getenv("QUICKBOOKS_CLIENT_ID"),
		QuickBooksClientSecret: os.Getenv("QUICKBOOKS_CLIENT_SECRET"),
		QuickBooksRedirectURI:  os.Getenv("QUICKBOOKS_REDIRECT_URI"),
		QuickBooksSandboxURL:   os.Getenv("QUICKBOOKS_SANDBOX_URL"),
		QuickBooksAuthURL:      os.Getenv("QUICKBOOKS_AUTH_URL"),
		QuickBooksTokenURL:     os.Getenv("QUICKBOOKS_TOKEN_URL"),
		QuickBooksScope:        os.Getenv("QUICKBOOKS_SCOPE"),
		QuickBooksState:        state,
		QuickBooksRealmID:      os.Getenv("QUICKBOOKS_SANDBOX_REALM_ID"),

		DBDriver:   GetEnvWithDefault("DB_DRIVER", "sqlite"),
		DBPath:     GetEnvWithDefault("DB_PATH", "quickbooks.sqlite"),
		DBHost:     GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     GetEnvWithDefault("DB_PORT", "5432"),
		DBName:     GetEnvWithDefault("DB_NAME", "quickbooks"),
		DBUser:     GetEnvWithDefault("DB_USER", "user"),
		DBPassword: GetEnvWithDefault("DB_PASSWORD", "password"),
		DBSSLMode:  GetEnvWithDefault("DB_SSL_MODE", "disable"),

		LogLevel: GetEnvWithDefault("LOG_LEVEL", "info"),

		JWTSecret:           GetEnvWithDefault("JWT_SECRET", "secret"),
		RequireServiceToken: GetEnvAsType("REQUIRE_SERVICE_TOKEN", false),

		SentryDSN: GetEnvWithDefault("SENTRY_DSN", ""),
	}
	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Warnf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
