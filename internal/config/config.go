// Package config loads the bot configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Complaint id schemes.
const (
	IDSchemeComposite = "composite"
	IDSchemeNumeric   = "numeric"
	IDSchemeUUID      = "uuid"
)

// Rate limiter backends.
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Config holds all environment backed configuration.
type Config struct {
	// Telegram
	BotToken string  `env:"BOT_TOKEN,notEmpty"`
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`
	GroupID  int64   `env:"GROUP_ID,notEmpty"`
	Workers  int     `env:"WORKERS" envDefault:"8"`

	// Storage
	DatabaseURL   string `env:"DATABASE_URL,notEmpty"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Wizard
	RequireNationalID   bool          `env:"REQUIRE_NATIONAL_ID" envDefault:"false"`
	ComplaintIDScheme   string        `env:"COMPLAINT_ID_SCHEME" envDefault:"composite"`
	DefaultLanguage     string        `env:"DEFAULT_LANGUAGE" envDefault:"uz"`
	LocalesDir          string        `env:"LOCALES_DIR"`
	ModerationWordsFile string        `env:"MODERATION_WORDS_FILE"`
	SessionIdleTimeout  time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"0"`

	// Rate limiting
	RateLimitCapacity int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitBackend  string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`

	// HTTP
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`
	APIJWTSecret string `env:"API_JWT_SECRET"`

	// Observability
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	Timezone  string `env:"TIMEZONE" envDefault:"Asia/Tashkent"`

	// Scheduled jobs; an empty expression disables the job.
	ReminderCron     string `env:"REMINDER_CRON" envDefault:"0 0 * * *"`
	WeeklyStatsCron  string `env:"WEEKLY_STATS_CRON" envDefault:"0 9 * * 1"`
	ExportCron       string `env:"EXPORT_CRON" envDefault:"0 0 */3 * *"`
	MembershipCron   string `env:"MEMBERSHIP_CRON" envDefault:"0 0 * * *"`
	AnnouncementCron string `env:"ANNOUNCEMENT_CRON" envDefault:"0 9,15 * * *"`
	AnnouncementText string `env:"ANNOUNCEMENT_TEXT"`
	SessionSweepCron string `env:"SESSION_SWEEP_CRON" envDefault:"*/5 * * * *"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Older deployments configure a single ADMIN_ID.
	if len(cfg.AdminIDs) == 0 {
		if raw := strings.TrimSpace(os.Getenv("ADMIN_ID")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid ADMIN_ID %q: %w", raw, err)
			}
			cfg.AdminIDs = []int64{id}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.AdminIDs) == 0 {
		errs = append(errs, errors.New("ADMIN_IDS (or ADMIN_ID) is required"))
	}
	for _, id := range c.AdminIDs {
		if id == 0 {
			errs = append(errs, errors.New("ADMIN_IDS must not contain 0"))
			break
		}
	}
	if c.GroupID == 0 {
		errs = append(errs, errors.New("GROUP_ID must be a non-zero chat id"))
	}
	switch c.ComplaintIDScheme {
	case IDSchemeComposite, IDSchemeNumeric, IDSchemeUUID:
	default:
		errs = append(errs, fmt.Errorf("unknown COMPLAINT_ID_SCHEME %q", c.ComplaintIDScheme))
	}
	switch c.RateLimitBackend {
	case LimiterMemory:
	case LimiterRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	if c.RateLimitCapacity <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit capacity and window must be positive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAdmin reports whether id is in the administrator allow-list.
func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}
