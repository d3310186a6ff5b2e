// ============================================================================
// backend/internal/shared/config.go
// Configuration management: .env loading + viper-backed environment lookup
// ============================================================================

package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// ServiceConfig holds the configuration of the API server
type ServiceConfig struct {
	ServiceName string
	HTTPPort    string
	GRPCPort    string // health + reflection endpoint
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error

	MongoDB  MongoConfig
	Security SecurityConfig
	CORS     CORSConfig
	Uploads  UploadConfig
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	JWTSecret          string
	JWTExpirationHours int
	BCryptCost         int // 10-12 recommended
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

// UploadConfig controls where profile photos land and how big they may be
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from a .env file. A missing file is not fatal;
// callers usually log the returned error and continue with the process environment.
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// newViper returns a viper instance bound to the process environment with all defaults set
func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB_NAME", "tuitiondesk")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", 20*time.Second)
	v.SetDefault("MONGO_MAX_POOL_SIZE", 50)
	v.SetDefault("MONGO_MIN_POOL_SIZE", 5)
	v.SetDefault("MONGO_MAX_IDLE_TIME", 30*time.Second)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION_HOURS", 100)
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS_MAX_AGE", 300)

	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", int64(2000000))

	v.AutomaticEnv()
	return v
}

// LoadServiceConfig builds the service configuration from the environment
func LoadServiceConfig(serviceName string) (*ServiceConfig, error) {
	v := newViper()

	config := &ServiceConfig{
		ServiceName: serviceName,
		HTTPPort:    v.GetString("HTTP_PORT"),
		GRPCPort:    v.GetString("GRPC_PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
	}

	config.MongoDB = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DB_NAME"),
		ConnectTimeout: v.GetDuration("MONGO_CONNECT_TIMEOUT"),
		MaxPoolSize:    uint64(v.GetInt("MONGO_MAX_POOL_SIZE")),
		MinPoolSize:    uint64(v.GetInt("MONGO_MIN_POOL_SIZE")),
		MaxIdleTime:    v.GetDuration("MONGO_MAX_IDLE_TIME"),
	}
	if config.MongoDB.URI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}

	config.Security = SecurityConfig{
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpirationHours: v.GetInt("JWT_EXPIRATION_HOURS"),
		BCryptCost:         v.GetInt("BCRYPT_COST"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins:   SplitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
		MaxAge:           v.GetInt("CORS_MAX_AGE"),
	}

	config.Uploads = UploadConfig{
		Dir:      v.GetString("UPLOAD_DIR"),
		MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
	}

	return config, nil
}

// SplitList splits a comma-separated value, dropping blanks
func SplitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ============================================================================
// Configuration Validation
// ============================================================================

// ValidateServiceConfig validates service configuration
func ValidateServiceConfig(config *ServiceConfig) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if config.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}
	if config.GRPCPort == "" {
		return fmt.Errorf("gRPC port is required")
	}
	if config.MongoDB.URI == "" {
		return fmt.Errorf("MongoDB URI is required")
	}
	if config.MongoDB.Database == "" {
		return fmt.Errorf("MongoDB database name is required")
	}
	if config.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if config.Security.BCryptCost < 4 || config.Security.BCryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", config.Security.BCryptCost)
	}
	return nil
}

// GetLogLevel returns the configured log level, falling back to info
func GetLogLevel(config *ServiceConfig) string {
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
		return config.LogLevel
	}
	return "info"
}
