package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Logging configuration
	Logging LoggingConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (optional, reminder ledger)
	Redis RedisConfig

	// RabbitMQ configuration (optional, domain events)
	RabbitMQ RabbitMQConfig

	// JWT configuration
	JWT JWTConfig

	// SMS configuration
	SMS SMSConfig

	// Telegram configuration
	Telegram TelegramConfig

	// OTP configuration
	OTP OTPConfig

	// Reminder scheduler configuration
	Reminders ReminderConfig

	// AI planner configuration
	Planner PlannerConfig

	// Pricing configuration
	Pricing PricingConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig

	// Payment gateway configuration
	Payment PaymentConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// LoggingConfig holds the optional rotating file sink
type LoggingConfig struct {
	File       string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	URL string // empty disables the reminder ledger
}

// RabbitMQConfig holds AMQP settings for trip lifecycle events
type RabbitMQConfig struct {
	URL      string // empty disables event publishing
	Exchange string
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SMSConfig holds SMS gateway configuration
type SMSConfig struct {
	Mode   string // "dev" logs messages, "production" sends through Dialog
	APIURL string
	ESMSQK string // Dialog URL message key
	Mask   string // Dialog SMS mask/source address
}

// TelegramConfig holds the Telegram bot token used for chat notifications
type TelegramConfig struct {
	BotToken string
}

// OTPConfig holds trip start verification settings
type OTPConfig struct {
	ExpiryMinutes     int
	MaxAttempts       int
	MaxDistanceMeters float64 // 0 records distance without enforcing it
}

// ReminderConfig holds the cron schedules for the reminder jobs
type ReminderConfig struct {
	Enabled                bool
	Timezone               string
	TripStartSchedule      string // cron spec with seconds
	DailyItinerarySchedule string
}

// PlannerConfig holds the LLM settings for AI itinerary generation
type PlannerConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string
	Timeout       time.Duration
}

// PricingConfig holds amounts used when requesting a trip payment
type PricingConfig struct {
	Currency    string
	PlatformFee float64 // charged for self-guided trips
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
}

// PaymentConfig holds PAYable IPG configuration
type PaymentConfig struct {
	Environment   string // "sandbox" or "production"
	MerchantKey   string
	MerchantToken string // never exposed to clients, only used for checkValue
	LogoURL       string
	ReturnURL     string
	WebhookURL    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Logging: LoggingConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "ceylon360.trips"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		SMS: SMSConfig{
			Mode:   getEnv("SMS_MODE", "dev"),
			APIURL: getEnv("DIALOG_SMS_URL", "https://e-sms.dialog.lk/api/v1/message-via-url/create/url-campaign"),
			ESMSQK: getEnv("DIALOG_SMS_ESMSQK", ""),
			Mask:   getEnv("DIALOG_SMS_MASK", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		OTP: OTPConfig{
			ExpiryMinutes:     getEnvAsInt("OTP_EXPIRY_MINUTES", 30),
			MaxAttempts:       getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			MaxDistanceMeters: getEnvAsFloat("OTP_MAX_DISTANCE_METERS", 0),
		},
		Reminders: ReminderConfig{
			Enabled:                getEnvAsBool("REMINDERS_ENABLED", true),
			Timezone:               getEnv("REMINDERS_TIMEZONE", "Asia/Colombo"),
			TripStartSchedule:      getEnv("REMINDERS_TRIP_START_SCHEDULE", "0 0 18 * * *"),
			DailyItinerarySchedule: getEnv("REMINDERS_DAILY_ITINERARY_SCHEDULE", "0 0 7 * * *"),
		},
		Planner: PlannerConfig{
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:       time.Duration(getEnvAsInt("PLANNER_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Pricing: PricingConfig{
			Currency:    getEnv("PRICING_CURRENCY", "LKR"),
			PlatformFee: getEnvAsFloat("PRICING_PLATFORM_FEE", 1500),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
		Payment: PaymentConfig{
			Environment:   getEnv("PAYABLE_ENVIRONMENT", "sandbox"),
			MerchantKey:   getEnv("PAYABLE_MERCHANT_KEY", ""),
			MerchantToken: getEnv("PAYABLE_MERCHANT_TOKEN", ""),
			LogoURL:       getEnv("PAYABLE_LOGO_URL", ""),
			ReturnURL:     getEnv("PAYABLE_RETURN_URL", ""),
			WebhookURL:    getEnv("PAYABLE_WEBHOOK_URL", ""),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.SMS.Mode == "production" && c.SMS.ESMSQK == "" {
		return fmt.Errorf("DIALOG_SMS_ESMSQK is required when SMS_MODE is production")
	}

	if c.OTP.ExpiryMinutes <= 0 {
		return fmt.Errorf("OTP_EXPIRY_MINUTES must be positive")
	}

	if c.OTP.MaxDistanceMeters < 0 {
		return fmt.Errorf("OTP_MAX_DISTANCE_METERS cannot be negative")
	}

	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		return fmt.Errorf("invalid REMINDERS_TIMEZONE %q: %w", c.Reminders.Timezone, err)
	}

	if c.Pricing.PlatformFee <= 0 {
		return fmt.Errorf("PRICING_PLATFORM_FEE must be positive")
	}

	return nil
}

// Location returns the reminder timezone, falling back to UTC
func (c ReminderConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
