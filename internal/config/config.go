package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate" env:"DATABASE_MIGRATE"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// SecurityConfig holds every knob of the account-security state machine.
type SecurityConfig struct {
	JWTSecret           string        `yaml:"jwt_secret" env:"SECRET_KEY"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	BcryptCost          int           `yaml:"bcrypt_cost"`
	MaxFailedAttempts   int           `yaml:"max_failed_attempts"`
	LockDuration        time.Duration `yaml:"lock_duration"`
	PinTTL              time.Duration `yaml:"pin_ttl"`
	MaxRecoveryAttempts int           `yaml:"max_recovery_attempts"`
}

type IssueLimitConfig struct {
	MaxPerWindow int           `yaml:"max_per_window"`
	Window       time.Duration `yaml:"window"`
}

type NotificationsConfig struct {
	// Mode is "remote" (notification microservice) or "direct" (SMTP/SMS/Telegram).
	Mode       string           `yaml:"mode" env:"NOTIFICATION_MODE"`
	ServiceURL string           `yaml:"service_url" env:"NOTIFICATION_SERVICE_URL"`
	Timeout    time.Duration    `yaml:"timeout"`
	IssueLimit IssueLimitConfig `yaml:"issue_limit"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" env:"SMTP_FROM"`
}

type MobizonConfig struct {
	APIKey   string `yaml:"api_key" env:"MOBIZON_API_KEY"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
}

type ProfileConfig struct {
	BaseURL string        `yaml:"base_url" env:"URL_USERS"`
	Timeout time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	UserInfoURL string        `yaml:"userinfo_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type PinReaperConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Security      SecurityConfig      `yaml:"security"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Email         EmailConfig         `yaml:"email"`
	Mobizon       MobizonConfig       `yaml:"mobizon"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Profile       ProfileConfig       `yaml:"profile"`
	Google        GoogleConfig        `yaml:"google"`
	PinReaper     PinReaperConfig     `yaml:"pin_reaper"`
	Log           LogConfig           `yaml:"log"`
}

// Load reads the YAML file at path (CONFIG_PATH or config/config.yaml when
// empty), applies environment overrides and fills defaults.
// A missing file is not an error: env and defaults still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultPath
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}

	s := &c.Security
	if s.TokenTTL <= 0 {
		s.TokenTTL = 15 * time.Minute
	}
	if s.MaxFailedAttempts <= 0 {
		s.MaxFailedAttempts = 3
	}
	if s.LockDuration <= 0 {
		s.LockDuration = 15 * time.Minute
	}
	if s.PinTTL <= 0 {
		s.PinTTL = 60 * time.Second
	}
	if s.MaxRecoveryAttempts <= 0 {
		s.MaxRecoveryAttempts = 3
	}

	n := &c.Notifications
	if n.Mode == "" {
		n.Mode = "remote"
	}
	if n.ServiceURL == "" {
		n.ServiceURL = "http://localhost:8001/notifications"
	}
	if n.Timeout <= 0 {
		n.Timeout = 10 * time.Second
	}
	if n.IssueLimit.Window <= 0 {
		n.IssueLimit.Window = 10 * time.Minute
	}

	if c.Profile.Timeout <= 0 {
		c.Profile.Timeout = 5 * time.Second
	}
	if c.Google.UserInfoURL == "" {
		c.Google.UserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo?alt=json"
	}
	if c.Google.Timeout <= 0 {
		c.Google.Timeout = 5 * time.Second
	}
	if c.PinReaper.Retention <= 0 {
		c.PinReaper.Retention = 24 * time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Security.JWTSecret) == "" {
		problems = append(problems, "security.jwt_secret (SECRET_KEY) is required")
	}
	if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31) {
		problems = append(problems, "security.bcrypt_cost must be between 4 and 31")
	}
	switch c.Notifications.Mode {
	case "remote", "direct":
	default:
		problems = append(problems, fmt.Sprintf("notifications.mode %q must be remote or direct", c.Notifications.Mode))
	}
	if c.Notifications.IssueLimit.MaxPerWindow < 0 {
		problems = append(problems, "notifications.issue_limit.max_per_window must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
