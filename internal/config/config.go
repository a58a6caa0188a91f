// Package config loads runtime configuration from the environment.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/redevirtus/virtus/internal/timebudget"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	BaseURL  string
	Location *time.Location

	DailyAllowance int
	ReminderHour   int

	SessionSecret    []byte
	SessionTTL       time.Duration
	EphemeralSecret  bool
	AllowedOrigins   []string
	ConsumeOnApprove bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	PostmarkToken string
	FromEmail     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string

	Backup BackupConfig
}

// BackupConfig configures encrypted state snapshots in S3-compatible storage.
type BackupConfig struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Prefix        string
	Passphrase    string
	Hour          int
	RetentionDays int
}

// LoadDotEnv reads files into the environment without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads Config from environment variables with defaults.
func Load() (Config, error) {
	port := EnvString("VIRTUS_PORT", "8080")
	cfg := Config{
		Port:     port,
		DBPath:   EnvString("VIRTUS_DB_PATH", "virtus.db"),
		LogLevel: EnvString("VIRTUS_LOG_LEVEL", "info"),
		BaseURL:  EnvString("VIRTUS_BASE_URL", "http://localhost:"+port),

		DailyAllowance: EnvInt("VIRTUS_DAILY_ALLOWANCE", timebudget.DefaultAllowance),
		ReminderHour:   EnvInt("VIRTUS_REMINDER_HOUR", 7),

		SessionTTL:       EnvDuration("VIRTUS_SESSION_TTL", 30*24*time.Hour),
		AllowedOrigins:   EnvList("VIRTUS_ALLOWED_ORIGINS"),
		ConsumeOnApprove: EnvBool("VIRTUS_CONSUME_INVITES_ON_APPROVAL", false),

		RedisAddr:     EnvString("VIRTUS_REDIS_ADDR", ""),
		RedisPassword: EnvString("VIRTUS_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("VIRTUS_REDIS_DB", 0),
		DatabaseURL:   EnvString("DATABASE_URL", ""),

		AdminEmail:    EnvString("VIRTUS_ADMIN_EMAIL", ""),
		AdminPassword: EnvString("VIRTUS_ADMIN_PASSWORD", ""),
		AdminName:     EnvString("VIRTUS_ADMIN_NAME", "Administrador"),

		PostmarkToken: EnvString("VIRTUS_POSTMARK_TOKEN", ""),
		FromEmail:     EnvString("VIRTUS_FROM_EMAIL", ""),

		VAPIDPublicKey:  EnvString("VIRTUS_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: EnvString("VIRTUS_VAPID_PRIVATE_KEY", ""),
		PushSubscriber:  EnvString("VIRTUS_PUSH_SUBSCRIBER", ""),

		Backup: BackupConfig{
			Endpoint:      EnvString("VIRTUS_BACKUP_S3_ENDPOINT", ""),
			Bucket:        EnvString("VIRTUS_BACKUP_S3_BUCKET", ""),
			Region:        EnvString("VIRTUS_BACKUP_S3_REGION", "auto"),
			AccessKey:     EnvString("VIRTUS_BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:     EnvString("VIRTUS_BACKUP_S3_SECRET_KEY", ""),
			Prefix:        EnvString("VIRTUS_BACKUP_PREFIX", "virtus/"),
			Passphrase:    EnvString("VIRTUS_BACKUP_PASSPHRASE", ""),
			Hour:          EnvInt("VIRTUS_BACKUP_HOUR", 3),
			RetentionDays: EnvInt("VIRTUS_BACKUP_RETENTION_DAYS", 30),
		},
	}

	loc, err := time.LoadLocation(EnvString("VIRTUS_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return Config{}, fmt.Errorf("load timezone: %w", err)
	}
	cfg.Location = loc

	if cfg.DailyAllowance == 0 {
		return Config{}, errors.New("VIRTUS_DAILY_ALLOWANCE must be positive")
	}
	if cfg.ReminderHour > 23 {
		return Config{}, fmt.Errorf("VIRTUS_REMINDER_HOUR must be between 0 and 23, got %d", cfg.ReminderHour)
	}

	if cfg.Backup.Hour > 23 {
		return Config{}, fmt.Errorf("VIRTUS_BACKUP_HOUR must be between 0 and 23, got %d", cfg.Backup.Hour)
	}

	if secret := os.Getenv("VIRTUS_SESSION_SECRET"); secret != "" {
		if len(secret) < 32 {
			return Config{}, errors.New("VIRTUS_SESSION_SECRET must be at least 32 bytes")
		}
		cfg.SessionSecret = []byte(secret)
	} else {
		cfg.SessionSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.SessionSecret); err != nil {
			return Config{}, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.EphemeralSecret = true
	}

	return cfg, nil
}
