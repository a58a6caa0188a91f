package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redevirtus/virtus/internal/timebudget"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"VIRTUS_PORT", "VIRTUS_TIMEZONE", "VIRTUS_SESSION_SECRET", "VIRTUS_DAILY_ALLOWANCE", "VIRTUS_REMINDER_HOUR", "VIRTUS_CONSUME_INVITES_ON_APPROVAL", "VIRTUS_BACKUP_HOUR", "VIRTUS_BACKUP_RETENTION_DAYS", "VIRTUS_BACKUP_PREFIX"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.Location.String() != "America/Sao_Paulo" {
		t.Errorf("location = %v", cfg.Location)
	}
	if cfg.DailyAllowance != timebudget.DefaultAllowance {
		t.Errorf("allowance = %d", cfg.DailyAllowance)
	}
	if cfg.ConsumeOnApprove {
		t.Error("expected invite consumption to default off")
	}
	if !cfg.EphemeralSecret || len(cfg.SessionSecret) != 32 {
		t.Errorf("expected generated 32-byte secret, got %d bytes", len(cfg.SessionSecret))
	}
	if cfg.Backup.Hour != 3 || cfg.Backup.RetentionDays != 30 || cfg.Backup.Prefix != "virtus/" {
		t.Errorf("backup defaults = %+v", cfg.Backup)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIRTUS_PORT", "9000")
	t.Setenv("VIRTUS_TIMEZONE", "UTC")
	t.Setenv("VIRTUS_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("VIRTUS_SESSION_TTL", "2h")
	t.Setenv("VIRTUS_DAILY_ALLOWANCE", "600")
	t.Setenv("VIRTUS_CONSUME_INVITES_ON_APPROVAL", "true")
	t.Setenv("VIRTUS_ALLOWED_ORIGINS", "app.example.com, ,*.example.org")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.Location != time.UTC {
		t.Errorf("port/location = %q/%v", cfg.Port, cfg.Location)
	}
	if cfg.EphemeralSecret || string(cfg.SessionSecret) != "0123456789abcdef0123456789abcdef" {
		t.Error("expected configured session secret")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("ttl = %v", cfg.SessionTTL)
	}
	if cfg.DailyAllowance != 600 || !cfg.ConsumeOnApprove {
		t.Errorf("allowance/consume = %d/%v", cfg.DailyAllowance, cfg.ConsumeOnApprove)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"timezone", "VIRTUS_TIMEZONE", "Mars/Olympus"},
		{"short secret", "VIRTUS_SESSION_SECRET", "short"},
		{"reminder hour", "VIRTUS_REMINDER_HOUR", "24"},
		{"backup hour", "VIRTUS_BACKUP_HOUR", "25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "-4")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")
	if got := EnvInt("X_INT", 3); got != 3 {
		t.Errorf("EnvInt = %d", got)
	}
	if got := EnvBool("X_BOOL", true); !got {
		t.Error("EnvBool should fall back")
	}
	if got := EnvDuration("X_DUR", time.Minute); got != time.Minute {
		t.Errorf("EnvDuration = %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VIRTUS_DOTENV_PROBE=from-file\nVIRTUS_DOTENV_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIRTUS_DOTENV_KEEP", "from-env")
	t.Setenv("VIRTUS_DOTENV_PROBE", "")
	os.Unsetenv("VIRTUS_DOTENV_PROBE")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("VIRTUS_DOTENV_PROBE"); got != "from-file" {
		t.Errorf("probe = %q", got)
	}
	if got := os.Getenv("VIRTUS_DOTENV_KEEP"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
}
