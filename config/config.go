package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from built-in
// defaults, then the optional YAML file named by CONFIG_FILE, then
// environment variables (highest precedence).
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	JWT        JWTConfig        `yaml:"jwt"`
	AWS        AWSConfig        `yaml:"aws"`
	AI         AIConfig         `yaml:"ai"`
	Email      EmailConfig      `yaml:"email"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string `yaml:"port"`
	ReadTimeout        int    `yaml:"read_timeout_sec"`
	WriteTimeout       int    `yaml:"write_timeout_sec"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"` // comma-separated, or "*"
	MaxUploadMB        int    `yaml:"max_upload_mb"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"` // if set, used as-is
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

// AWSConfig holds AWS credentials and the upload archive bucket.
type AWSConfig struct {
	Region               string `yaml:"region"`
	AccessKeyID          string `yaml:"access_key_id"`
	SecretAccessKey      string `yaml:"secret_access_key"`
	UploadsBucket        string `yaml:"uploads_bucket"` // empty disables archiving
	PresignExpireMinutes int    `yaml:"presign_expire_minutes"`
}

// AIConfig selects the text generation provider and its call parameters.
type AIConfig struct {
	Provider     string  `yaml:"provider"` // gemini | bedrock
	Model        string  `yaml:"model"`
	GeminiAPIKey string  `yaml:"gemini_api_key"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	MaxAttempts  int     `yaml:"max_attempts"`
	RetryBaseSec int     `yaml:"retry_base_sec"`
	ChatExcerpts int     `yaml:"chat_excerpts"`
	MaxBodyWords int     `yaml:"max_body_words"`
}

// EmailConfig selects the delivery channel and sender identity.
type EmailConfig struct {
	Provider          string `yaml:"provider"` // ses | gmail | smtp
	FromAddress       string `yaml:"from_address"`
	FromName          string `yaml:"from_name"`
	SenderName        string `yaml:"sender_name"` // signs AI emails in place of [Your Name]
	SMTPHost          string `yaml:"smtp_host"`
	SMTPPort          int    `yaml:"smtp_port"`
	SMTPUser          string `yaml:"smtp_user"`
	SMTPPass          string `yaml:"smtp_pass"`
	GmailClientID     string `yaml:"gmail_client_id"`
	GmailClientSecret string `yaml:"gmail_client_secret"`
	GmailRefreshToken string `yaml:"gmail_refresh_token"`
}

// GenerationConfig tunes bulk email generation.
type GenerationConfig struct {
	BatchWidth      int `yaml:"batch_width"`
	BatchTimeoutSec int `yaml:"batch_timeout_sec"`
	ReportTTLHours  int `yaml:"report_ttl_hours"`
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Timeout returns the per-call oracle timeout.
func (c AIConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// BatchTimeout returns the overall bound for one bulk generation run.
func (c GenerationConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSec) * time.Second
}

// ReportTTL returns how long async generation reports are kept.
func (c GenerationConfig) ReportTTL() time.Duration {
	return time.Duration(c.ReportTTLHours) * time.Hour
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       300,
			CORSAllowedOrigins: "http://localhost:3000,http://localhost:5173",
			MaxUploadMB:        20,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "webinarwins",
			SSLMode: "disable",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		JWT:   JWTConfig{Secret: "change-me-in-production", ExpireHours: 24},
		AWS:   AWSConfig{Region: "us-east-1", PresignExpireMinutes: 15},
		AI: AIConfig{
			Provider:     "gemini",
			MaxTokens:    2000,
			Temperature:  0.8,
			TimeoutSec:   30,
			MaxAttempts:  3,
			RetryBaseSec: 1,
			ChatExcerpts: 10,
			MaxBodyWords: 550,
		},
		Email: EmailConfig{
			Provider:    "smtp",
			FromAddress: "noreply@example.com",
			FromName:    "WebinarWins",
			SenderName:  "The Team",
			SMTPPort:    587,
		},
		Generation: GenerationConfig{BatchWidth: 5, BatchTimeoutSec: 600, ReportTTLHours: 24},
	}
}

// Load reads configuration from defaults, CONFIG_FILE and the environment
// (optionally populated from a .env file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Server
	s.Port = getEnv("PORT", s.Port)
	s.ReadTimeout = getEnvInt("READ_TIMEOUT_SEC", s.ReadTimeout)
	s.WriteTimeout = getEnvInt("WRITE_TIMEOUT_SEC", s.WriteTimeout)
	s.CORSAllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", s.CORSAllowedOrigins)
	s.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", s.MaxUploadMB)

	d := &cfg.Database
	d.URL = getEnv("DATABASE_URL", d.URL)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnv("DB_PORT", d.Port)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASSWORD", d.Password)
	d.DBName = getEnv("DB_NAME", d.DBName)
	d.SSLMode = getEnv("DB_SSLMODE", d.SSLMode)

	r := &cfg.Redis
	r.Addr = getEnv("REDIS_ADDR", r.Addr)
	r.Password = getEnv("REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("REDIS_DB", r.DB)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.ExpireHours = getEnvInt("JWT_EXPIRE_HOURS", cfg.JWT.ExpireHours)

	a := &cfg.AWS
	a.Region = getEnv("AWS_REGION", a.Region)
	a.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", a.AccessKeyID)
	a.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", a.SecretAccessKey)
	a.UploadsBucket = getEnv("AWS_S3_UPLOADS_BUCKET", a.UploadsBucket)
	a.PresignExpireMinutes = getEnvInt("AWS_S3_PRESIGN_EXPIRE_MINUTES", a.PresignExpireMinutes)

	ai := &cfg.AI
	ai.Provider = strings.ToLower(getEnv("AI_PROVIDER", ai.Provider))
	ai.Model = getEnv("AI_MODEL", ai.Model)
	ai.GeminiAPIKey = getEnv("GEMINI_API_KEY", ai.GeminiAPIKey)
	ai.MaxTokens = getEnvInt("AI_MAX_TOKENS", ai.MaxTokens)
	ai.Temperature = getEnvFloat("AI_TEMPERATURE", ai.Temperature)
	ai.TimeoutSec = getEnvInt("AI_TIMEOUT_SEC", ai.TimeoutSec)
	ai.MaxAttempts = getEnvInt("AI_MAX_ATTEMPTS", ai.MaxAttempts)
	ai.RetryBaseSec = getEnvInt("AI_RETRY_BASE_SEC", ai.RetryBaseSec)
	ai.ChatExcerpts = getEnvInt("AI_CHAT_EXCERPTS", ai.ChatExcerpts)
	ai.MaxBodyWords = getEnvInt("AI_MAX_BODY_WORDS", ai.MaxBodyWords)

	e := &cfg.Email
	e.Provider = strings.ToLower(getEnv("EMAIL_PROVIDER", e.Provider))
	e.FromAddress = getEnv("EMAIL_FROM_ADDRESS", e.FromAddress)
	e.FromName = getEnv("EMAIL_FROM_NAME", e.FromName)
	e.SenderName = getEnv("EMAIL_SENDER_NAME", e.SenderName)
	e.SMTPHost = getEnv("SMTP_HOST", e.SMTPHost)
	e.SMTPPort = getEnvInt("SMTP_PORT", e.SMTPPort)
	e.SMTPUser = getEnv("SMTP_USER", e.SMTPUser)
	e.SMTPPass = getEnv("SMTP_PASS", e.SMTPPass)
	e.GmailClientID = getEnv("GMAIL_CLIENT_ID", e.GmailClientID)
	e.GmailClientSecret = getEnv("GMAIL_CLIENT_SECRET", e.GmailClientSecret)
	e.GmailRefreshToken = getEnv("GMAIL_REFRESH_TOKEN", e.GmailRefreshToken)

	g := &cfg.Generation
	g.BatchWidth = getEnvInt("GENERATION_BATCH_WIDTH", g.BatchWidth)
	g.BatchTimeoutSec = getEnvInt("GENERATION_BATCH_TIMEOUT_SEC", g.BatchTimeoutSec)
	g.ReportTTLHours = getEnvInt("GENERATION_REPORT_TTL_HOURS", g.ReportTTLHours)
}

// validate checks structural settings. Provider credentials are checked when
// the oracle or delivery channel is built, so the server can start without them.
func (c *Config) validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required (set PORT)"))
	}
	if c.AI.MaxAttempts < 1 {
		errs = append(errs, errors.New("ai.max_attempts must be at least 1 (set AI_MAX_ATTEMPTS)"))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, errors.New("ai.temperature must be within [0,2] (set AI_TEMPERATURE)"))
	}
	if c.AI.MaxBodyWords < 50 {
		errs = append(errs, errors.New("ai.max_body_words must be at least 50 (set AI_MAX_BODY_WORDS)"))
	}
	if c.Generation.BatchWidth < 1 {
		errs = append(errs, errors.New("generation.batch_width must be at least 1 (set GENERATION_BATCH_WIDTH)"))
	}
	switch c.AI.Provider {
	case "gemini", "bedrock":
	default:
		errs = append(errs, fmt.Errorf("unknown ai provider %q (set AI_PROVIDER to gemini or bedrock)", c.AI.Provider))
	}
	switch c.Email.Provider {
	case "ses", "gmail", "smtp":
	default:
		errs = append(errs, fmt.Errorf("unknown email provider %q (set EMAIL_PROVIDER to ses, gmail or smtp)", c.Email.Provider))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
