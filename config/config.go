package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	BotToken             string   `env:"BOT_TOKEN" env-required:"true"`
	DatabaseURL          string   `env:"DATABASE_URL" env-required:"true"`
	AdminIDs             []int64  `env:"ADMIN_IDS" env-separator:","`
	PaymentProviderToken string   `env:"PAYMENT_PROVIDER_TOKEN"`
	PaymentCurrency      string   `env:"PAYMENT_CURRENCY" env-default:"XTR"`
	CheckInterval        Interval `env:"CHECK_SUBSCRIPTION_INTERVAL" env-default:"1h"`
	InviteLinkTTL        Interval `env:"INVITE_LINK_EXPIRE_TIME" env-default:"1h"`
	Timezone             string   `env:"TIMEZONE" env-default:"UTC"`
	GatewayTimeout       Interval `env:"GATEWAY_TIMEOUT" env-default:"10s"`
	ReminderDays         int      `env:"EXPIRY_REMINDER_DAYS" env-default:"3"`
	UpdateWorkers        int      `env:"UPDATE_WORKERS" env-default:"8"`
	RedisURL             string   `env:"REDIS_URL"`
	HTTPAddr             string   `env:"HTTP_ADDR" env-default:":8080"`
	LogLevel             string   `env:"LOG_LEVEL" env-default:"info"`
	LogFile              string   `env:"LOG_FILE"`
	BackupDir            string   `env:"BACKUP_DIR" env-default:"backups"`
	DBMaxOpenConns       int      `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
}

// Interval длительность из окружения: "90s", "1h" или целое число секунд
type Interval time.Duration

func (i *Interval) SetValue(s string) error {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*i = Interval(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*i = Interval(d)
	return nil
}

func (i Interval) Duration() time.Duration { return time.Duration(i) }

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on environment variables")
	}
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.BotToken) == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.CheckInterval <= 0 {
		errs = append(errs, errors.New("CHECK_SUBSCRIPTION_INTERVAL must be positive"))
	}
	if c.InviteLinkTTL <= 0 {
		errs = append(errs, errors.New("INVITE_LINK_EXPIRE_TIME must be positive"))
	}
	if c.UpdateWorkers <= 0 {
		errs = append(errs, errors.New("UPDATE_WORKERS must be positive"))
	}
	if c.ReminderDays < 0 {
		errs = append(errs, errors.New("EXPIRY_REMINDER_DAYS must not be negative"))
	}
	if c.PaymentCurrency != "XTR" && c.PaymentProviderToken == "" {
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER_TOKEN is required for currency %s", c.PaymentCurrency))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location часовой пояс бота для дат в сообщениях и расписания задач
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
