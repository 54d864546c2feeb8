package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string

	// Server
	ApiPort        string
	ServiceApiPort string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	MockServices    bool
	LogEmailsPath   string

	// App Defaults
	AppName    string
	AppBaseURL string

	// Invites
	InviteTTL            time.Duration
	InviteCodeMaxRetries int

	// Rent reminders
	ReminderLeadTime time.Duration
	ReminderScanCron string

	// Realtime
	WsSendBuffer         int
	WsMessagesPerSecond  float64
	WsMessageBurst       int
	WsMaxMessageBytes    int64
	WsHandshakeTimeout   time.Duration
	WsWriteTimeout       time.Duration
	WsAllowedOriginCheck bool

	// Rate Limiting Defaults
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "homelet")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@homelet.example.com")
	cfg.MockServices = getEnv("MOCK_SERVICES", "false") == "true"
	cfg.LogEmailsPath = getEnv("LOG_EMAILS", "")
	cfg.AppName = getEnv("APP_NAME", "Homelet")
	cfg.AppBaseURL = getEnv("APP_BASE_URL", "http://localhost:3000")
	cfg.ReminderScanCron = getEnv("REMINDER_SCAN_CRON", "@hourly")
	cfg.WsAllowedOriginCheck = getEnv("WS_CHECK_ORIGIN", "false") == "true"

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	inviteTTLHours, err := strconv.ParseInt(getEnv("INVITE_TTL_HOURS", "168"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INVITE_TTL_HOURS: %w", err)
	}
	cfg.InviteTTL = time.Duration(inviteTTLHours) * time.Hour

	cfg.InviteCodeMaxRetries, err = strconv.Atoi(getEnv("INVITE_CODE_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVITE_CODE_MAX_RETRIES: %w", err)
	}

	reminderLeadDays, err := strconv.Atoi(getEnv("REMINDER_LEAD_DAYS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_LEAD_DAYS: %w", err)
	}
	cfg.ReminderLeadTime = time.Duration(reminderLeadDays) * 24 * time.Hour

	cfg.WsSendBuffer, err = strconv.Atoi(getEnv("WS_SEND_BUFFER", "64"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_SEND_BUFFER: %w", err)
	}

	cfg.WsMessagesPerSecond, err = strconv.ParseFloat(getEnv("WS_MESSAGES_PER_SECOND", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_MESSAGES_PER_SECOND: %w", err)
	}

	cfg.WsMessageBurst, err = strconv.Atoi(getEnv("WS_MESSAGE_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_MESSAGE_BURST: %w", err)
	}

	cfg.WsMaxMessageBytes, err = strconv.ParseInt(getEnv("WS_MAX_MESSAGE_BYTES", "16384"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_MAX_MESSAGE_BYTES: %w", err)
	}

	wsHandshakeSeconds, err := strconv.ParseInt(getEnv("WS_HANDSHAKE_TIMEOUT_SECONDS", "10"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_HANDSHAKE_TIMEOUT_SECONDS: %w", err)
	}
	cfg.WsHandshakeTimeout = time.Duration(wsHandshakeSeconds) * time.Second

	wsWriteSeconds, err := strconv.ParseInt(getEnv("WS_WRITE_TIMEOUT_SECONDS", "10"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT_SECONDS: %w", err)
	}
	cfg.WsWriteTimeout = time.Duration(wsWriteSeconds) * time.Second

	cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	return cfg, nil
}
