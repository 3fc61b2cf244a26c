// Package config loads application configuration from the environment.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthCookieSecure bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	RateLimitTicketRate  float64
	RateLimitTicketBurst int
	RateLimitAuthRate    float64
	RateLimitAuthBurst   int
	RateLimitLockTTL     int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	OCREndpoint string
	OCRAPIKey   string
	OCRLanguage string

	FrontendURL string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_SERVICE", "facturio")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "facturio")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 50)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "no-reply@facturio.app")

	v.SetDefault("OCR_ENDPOINT", "https://api.ocr.space/parse/image")
	v.SetDefault("OCR_LANGUAGE", "spa")

	v.SetDefault("FRONTEND_URL", "http://localhost:5173")

	v.SetDefault("RATE_LIMIT_TICKET_RATE", 0.2)
	v.SetDefault("RATE_LIMIT_TICKET_BURST", 5)
	v.SetDefault("RATE_LIMIT_AUTH_RATE", 0.5)
	v.SetDefault("RATE_LIMIT_AUTH_BURST", 10)
	v.SetDefault("RATE_LIMIT_LOCK_TTL_SECONDS", 30)

	environment := strings.TrimSpace(v.GetString("ENVIRONMENT"))
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = v.GetBool("AUTH_COOKIE_SECURE")
	}

	return Config{
		AppName:          v.GetString("APP_SERVICE"),
		AppVersion:       v.GetString("APP_VERSION"),
		Environment:      environment,
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		AuthCookieSecure: authCookieSecure,
		OTLPEndpoint:     v.GetString("OTLP_ENDPOINT"),

		DBType:            v.GetString("DATABASE_TYPE"),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		RateLimitTicketRate:  v.GetFloat64("RATE_LIMIT_TICKET_RATE"),
		RateLimitTicketBurst: v.GetInt("RATE_LIMIT_TICKET_BURST"),
		RateLimitAuthRate:    v.GetFloat64("RATE_LIMIT_AUTH_RATE"),
		RateLimitAuthBurst:   v.GetInt("RATE_LIMIT_AUTH_BURST"),
		RateLimitLockTTL:     v.GetInt("RATE_LIMIT_LOCK_TTL_SECONDS"),

		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),

		OCREndpoint: v.GetString("OCR_ENDPOINT"),
		OCRAPIKey:   strings.TrimSpace(v.GetString("OCR_API_KEY")),
		OCRLanguage: v.GetString("OCR_LANGUAGE"),

		FrontendURL: strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
