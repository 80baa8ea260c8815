package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Admin
	AdminEmails       string
	SeedAdminEmail    string
	SeedAdminPassword string

	// Server
	Port         string
	ServerURL    string // public base URL gateways call back into
	ClientOrigin string // frontend base URL callbacks redirect to

	// Khalti
	KhaltiSecretKey string
	KhaltiBaseURL   string

	// eSewa
	EsewaSecretKey    string
	EsewaMerchantCode string
	EsewaFormURL      string
	EsewaStatusURL    string

	PaymentTimeout time.Duration

	// Rate limiter storage; in-memory when empty
	RedisURL string

	// Observability
	LogLevel  string
	SentryDSN string
	AppEnv    string
}

// Load reads configuration from the environment, after applying a .env file if one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "tutor_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),

		AdminEmails:       getEnv("ADMIN_EMAILS", ""),
		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),

		Port:         getEnv("PORT", "8000"),
		ServerURL:    getEnv("SERVER_URL", "http://localhost:8000"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),

		KhaltiSecretKey: getEnv("KHALTI_SECRET_KEY", ""),
		KhaltiBaseURL:   getEnv("KHALTI_BASE_URL", "https://khalti.com/api/v2"),

		EsewaSecretKey:    getEnv("ESEWA_SECRET_KEY", ""),
		EsewaMerchantCode: getEnv("ESEWA_MERCHANT_CODE", ""),
		EsewaFormURL:      getEnv("ESEWA_FORM_URL", "https://epay.esewa.com.np/api/epay/main/v2/form"),
		EsewaStatusURL:    getEnv("ESEWA_STATUS_URL", "https://epay.esewa.com.np/api/epay/transaction/status/"),

		PaymentTimeout: parseDuration(getEnv("PAYMENT_TIMEOUT", "15s"), 15*time.Second),

		RedisURL: getEnv("REDIS_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SentryDSN: getEnv("SENTRY_DSN", ""),
		AppEnv:    getEnv("APP_ENV", "development"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// KhaltiConfigured reports whether the Khalti secret is set.
func (c *Config) KhaltiConfigured() bool {
	return c.KhaltiSecretKey != ""
}

// EsewaConfigured reports whether both the eSewa merchant code and secret are set.
func (c *Config) EsewaConfigured() bool {
	return c.EsewaSecretKey != "" && c.EsewaMerchantCode != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
