package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup and passed
// by reference into the services that need it.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Twilio   TwilioConfig
	Session  SessionConfig
	Catalog  CatalogConfig
	Payment  PaymentConfig
	Email    EmailConfig
	OCR      OCRConfig
	Admin    AdminConfig
	Retry    RetryConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host                   string
	Port                   string
	User                   string
	Password               string
	Name                   string
	SSLMode                string
	InstanceConnectionName string // Cloud SQL socket, empty for TCP
	ConnectTimeout         time.Duration
	UseMemoryStore         bool
}

type RedisConfig struct {
	Addr     string // empty disables the webhook dedup cache
	Password string
	DB       int
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	WhatsAppFrom      string // "whatsapp:+14155238886"
	ButtonsContentSID string // quick-reply content template (up to 3 buttons)
	ListContentSID    string // list-picker content template
	SendTimeout       time.Duration
	ValidateSignature bool
}

type SessionConfig struct {
	IdleTimeout      time.Duration
	TokenExpiry      time.Duration
	RefreshThreshold time.Duration
	PageSize         int
	GCAfter          time.Duration // NEW sessions idle longer than this are collectable
}

type CatalogConfig struct {
	BaseURL    string // remote catalog API, empty forces local fallback
	APITimeout time.Duration
}

type PaymentConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	APITimeout    time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	FromName     string
	FromEmail    string
	ResetURL     string
}

type OCRConfig struct {
	OpenAIAPIKey string
	Model        string
	APITimeout   time.Duration
}

type AdminConfig struct {
	JWTSecret string
	JWTIssuer string
}

// RetryConfig drives the exponential backoff used for the external order and
// appointment backends.
type RetryConfig struct {
	BaseDelay      time.Duration
	Multiplier     float64
	MaxAttempts    int
	JitterFraction float64
}

// Load reads configuration from the environment, trying .env files first the
// same way the deployed service does.
func Load() (*Config, error) {
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			if err = godotenv.Load("environments/.env.development"); err != nil {
				log.Println("⚠️  No .env file found - using environment variables")
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnv("DB_PORT", "5432"),
			User:                   getEnv("DB_USER", "postgres"),
			Password:               getEnv("DB_PASS", ""),
			Name:                   getEnv("DB_NAME", "medlane"),
			SSLMode:                getEnv("DB_SSLMODE", "disable"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
			ConnectTimeout:         getDurationEnv("DB_CONNECT_TIMEOUT", 60*time.Second),
			UseMemoryStore:         getEnv("USE_MEMORY_STORE", "false") == "true",
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Twilio: TwilioConfig{
			AccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
			WhatsAppFrom:      os.Getenv("TWILIO_WHATSAPP_FROM"),
			ButtonsContentSID: os.Getenv("TWILIO_BUTTONS_CONTENT_SID"),
			ListContentSID:    os.Getenv("TWILIO_LIST_CONTENT_SID"),
			SendTimeout:       getDurationEnv("TWILIO_SEND_TIMEOUT", 15*time.Second),
			ValidateSignature: getEnv("DISABLE_WEBHOOK_VALIDATION", "false") != "true",
		},
		Session: SessionConfig{
			IdleTimeout:      getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			TokenExpiry:      getDurationEnv("SESSION_TOKEN_EXPIRY", 24*time.Hour),
			RefreshThreshold: getDurationEnv("SESSION_REFRESH_THRESHOLD", 2*time.Hour),
			PageSize:         getIntEnv("LIST_PAGE_SIZE", 5),
			GCAfter:          getDurationEnv("SESSION_GC_AFTER", 7*24*time.Hour),
		},
		Catalog: CatalogConfig{
			BaseURL:    os.Getenv("CATALOG_API_URL"),
			APITimeout: getDurationEnv("CATALOG_API_TIMEOUT", 10*time.Second),
		},
		Payment: PaymentConfig{
			BaseURL:       os.Getenv("PAYMENT_API_URL"),
			APIKey:        os.Getenv("PAYMENT_API_KEY"),
			WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			APITimeout:    getDurationEnv("PAYMENT_API_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Medlane"),
			FromEmail:    getEnv("EMAIL_FROM_ADDRESS", "care@medlane.ng"),
			ResetURL:     getEnv("PASSWORD_RESET_URL", "https://medlane.ng/reset"),
		},
		OCR: OCRConfig{
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			Model:        getEnv("OCR_MODEL", "gpt-4o-mini"),
			APITimeout:   getDurationEnv("OCR_API_TIMEOUT", 10*time.Second),
		},
		Admin: AdminConfig{
			JWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
			JWTIssuer: getEnv("ADMIN_JWT_ISSUER", "medlane-backend"),
		},
		Retry: RetryConfig{
			BaseDelay:      getDurationEnv("RETRY_BASE_DELAY", 500*time.Millisecond),
			Multiplier:     getFloatEnv("RETRY_MULTIPLIER", 2.0),
			MaxAttempts:    getIntEnv("RETRY_MAX_ATTEMPTS", 4),
			JitterFraction: getFloatEnv("RETRY_JITTER_FRACTION", 0.2),
		},
	}

	if cfg.Session.RefreshThreshold >= cfg.Session.TokenExpiry {
		return nil, fmt.Errorf("SESSION_REFRESH_THRESHOLD must be shorter than SESSION_TOKEN_EXPIRY")
	}

	return cfg, nil
}

// DSN builds the postgres connection string, switching to the Cloud SQL unix
// socket when an instance connection name is present.
func (c *DatabaseConfig) DSN() string {
	if c.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			c.InstanceConnectionName, c.User, c.Password, c.Name)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
