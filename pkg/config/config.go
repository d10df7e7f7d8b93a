package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Duplicate submission policies.
const (
	DuplicatePolicyAllow  = "allow"
	DuplicatePolicyReject = "reject"
)

// Notification transports.
const (
	TransportLog  = "log"
	TransportSMTP = "smtp"
	TransportSES  = "ses"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Applications  ApplicationsConfig
	Uploads       UploadsConfig
	Notifications NotificationsConfig
	RateLimit     RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how bearer tokens issued by the identity directory are verified.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ApplicationsConfig governs trainer application intake and staff views.
type ApplicationsConfig struct {
	DuplicatePolicy string
	SummaryCacheTTL time.Duration
}

// UploadsConfig controls attachment storage and validation.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
}

// NotificationsConfig configures applicant and staff email dispatch.
type NotificationsConfig struct {
	Enabled         bool
	Transport       string
	FromEmail       string
	StaffRecipients []string
	StatusChanges   bool
	SNSTopicARN     string
	AWSRegion       string
	SMTP            SMTPConfig
	Workers         int
	MaxRetries      int
	RetryDelay      time.Duration
	SendTimeout     time.Duration
	DigestCron      string
}

// SMTPConfig holds relay credentials for the smtp transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// RateLimitConfig throttles the public submission endpoint per client IP.
type RateLimitConfig struct {
	SubmitLimit  int
	SubmitWindow time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	policy := strings.ToLower(strings.TrimSpace(v.GetString("APPLICATIONS_DUPLICATE_POLICY")))
	if policy != DuplicatePolicyReject {
		policy = DuplicatePolicyAllow
	}
	cfg.Applications = ApplicationsConfig{
		DuplicatePolicy: policy,
		SummaryCacheTTL: parseDuration(v.GetString("SUMMARY_CACHE_TTL"), time.Minute),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 15*time.Minute),
	}

	transport := strings.ToLower(strings.TrimSpace(v.GetString("NOTIFY_TRANSPORT")))
	switch transport {
	case TransportSMTP, TransportSES:
	default:
		transport = TransportLog
	}
	cfg.Notifications = NotificationsConfig{
		Enabled:         v.GetBool("NOTIFY_ENABLED"),
		Transport:       transport,
		FromEmail:       v.GetString("NOTIFY_FROM_EMAIL"),
		StaffRecipients: splitAndTrim(v.GetString("NOTIFY_STAFF_RECIPIENTS")),
		StatusChanges:   v.GetBool("NOTIFY_STATUS_CHANGES"),
		SNSTopicARN:     v.GetString("NOTIFY_SNS_TOPIC_ARN"),
		AWSRegion:       v.GetString("AWS_REGION"),
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
		},
		Workers:     v.GetInt("NOTIFY_WORKERS"),
		MaxRetries:  v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
		SendTimeout: parseDuration(v.GetString("NOTIFY_SEND_TIMEOUT"), 10*time.Second),
		DigestCron:  strings.TrimSpace(v.GetString("NOTIFY_DIGEST_CRON")),
	}

	cfg.RateLimit = RateLimitConfig{
		SubmitLimit:  v.GetInt("SUBMIT_RATE_LIMIT"),
		SubmitWindow: parseDuration(v.GetString("SUBMIT_RATE_WINDOW"), time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "learnhub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APPLICATIONS_DUPLICATE_POLICY", DuplicatePolicyAllow)
	v.SetDefault("SUMMARY_CACHE_TTL", "1m")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./storage/trainer-applications")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document,image/jpeg,image/png,application/zip")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "15m")

	v.SetDefault("NOTIFY_ENABLED", true)
	v.SetDefault("NOTIFY_TRANSPORT", TransportLog)
	v.SetDefault("NOTIFY_FROM_EMAIL", "no-reply@learnhub.local")
	v.SetDefault("NOTIFY_STAFF_RECIPIENTS", "")
	v.SetDefault("NOTIFY_STATUS_CHANGES", false)
	v.SetDefault("NOTIFY_SNS_TOPIC_ARN", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")
	v.SetDefault("NOTIFY_SEND_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_DIGEST_CRON", "")

	v.SetDefault("SUBMIT_RATE_LIMIT", 10)
	v.SetDefault("SUBMIT_RATE_WINDOW", "1h")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
