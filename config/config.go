package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Required credential names.
const (
	KeyPracticumToken = "PRACTICUM_TOKEN"
	KeyTelegramToken  = "TELEGRAM_TOKEN"
	KeyTelegramChatID = "TELEGRAM_CHAT_ID"
)

// DefaultEnvFile is the dotenv file read when no other path is given.
const DefaultEnvFile = ".env"

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Homework status API
	Practicum PracticumConfig

	// Telegram Bot
	Telegram TelegramConfig

	// Poll loop
	Poller PollerConfig

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string
}

// PracticumConfig holds homework status API settings.
type PracticumConfig struct {
	// OAuth token of the student
	Token string

	// Full URL of the homework status resource
	Endpoint string

	// HTTP request timeout
	RequestTimeout time.Duration
}

// TelegramConfig holds Telegram Bot settings.
type TelegramConfig struct {
	// Bot token from @BotFather
	Token string

	// Destination chat, as given and parsed
	RawChatID string
	ChatID    int64

	// Bot API URL template, "%s" for token and method
	APIEndpoint string

	// HTTP request timeout
	RequestTimeout time.Duration
}

// PollerConfig holds poll loop settings.
type PollerConfig struct {
	// Pause between two poll cycles
	RetryPeriod time.Duration

	// from_date of the first query; 0 means "now" at load time
	FromDate int64
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
	LogFile   string // optional file mirror
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// EnvFile is a dotenv file merged into the environment. Variables already
	// present in the process environment win. A missing file is not an error.
	EnvFile string

	// Now is used to resolve the default FromDate (tests).
	Now func() time.Time
}

// Load loads configuration from environment variables and an optional
// dotenv file, then validates it. On validation failure the partially
// filled config is returned along with the error so callers can report
// which credentials are missing.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
	}

	v := newViper()
	cfg := &Config{}

	var errs []string

	env := Environment(strings.ToLower(v.GetString("APP_ENV")))
	cfg.App = AppConfig{
		Name:        v.GetString("APP_NAME"),
		Environment: env,
		Debug:       v.GetBool("APP_DEBUG"),
		Version:     v.GetString("APP_VERSION"),
	}

	practicumTimeout, err := getDuration(v, "PRACTICUM_REQUEST_TIMEOUT")
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Practicum = PracticumConfig{
		Token:          strings.TrimSpace(v.GetString(KeyPracticumToken)),
		Endpoint:       v.GetString("PRACTICUM_ENDPOINT"),
		RequestTimeout: practicumTimeout,
	}

	telegramTimeout, err := getDuration(v, "TELEGRAM_REQUEST_TIMEOUT")
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Telegram = TelegramConfig{
		Token:          strings.TrimSpace(v.GetString(KeyTelegramToken)),
		RawChatID:      strings.TrimSpace(v.GetString(KeyTelegramChatID)),
		APIEndpoint:    v.GetString("TELEGRAM_API_ENDPOINT"),
		RequestTimeout: telegramTimeout,
	}
	if cfg.Telegram.RawChatID != "" {
		chatID, err := strconv.ParseInt(cfg.Telegram.RawChatID, 10, 64)
		if err != nil {
			errs = append(errs, KeyTelegramChatID+" must be an integer")
		}
		cfg.Telegram.ChatID = chatID
	}

	retryPeriod, err := getDuration(v, "RETRY_PERIOD")
	if err != nil {
		errs = append(errs, err.Error())
	}
	fromDate, err := strconv.ParseInt(strings.TrimSpace(v.GetString("POLL_FROM_DATE")), 10, 64)
	if err != nil {
		errs = append(errs, "POLL_FROM_DATE must be a unix timestamp")
	}
	if fromDate == 0 {
		fromDate = opts.Now().Unix()
	}
	cfg.Poller = PollerConfig{
		RetryPeriod: retryPeriod,
		FromDate:    fromDate,
	}

	cfg.Observability = ObservabilityConfig{
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		LogFile:   v.GetString("LOG_FILE"),
	}

	// Parse and validation problems are reported together, and the partial
	// config is returned so callers can name missing credentials.
	errs = append(errs, cfg.problems()...)
	if len(errs) > 0 {
		return cfg, joinErrors(errs)
	}

	return cfg, nil
}

// newViper returns a viper instance bound to the process environment with
// every default set.
func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "homework-status-bot")
	v.SetDefault("APP_ENV", string(EnvDevelopment))
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("APP_VERSION", "0.1.0")

	v.SetDefault(KeyPracticumToken, "")
	v.SetDefault("PRACTICUM_ENDPOINT", "https://practicum.yandex.ru/api/user_api/homework_statuses/")
	v.SetDefault("PRACTICUM_REQUEST_TIMEOUT", "30s")

	v.SetDefault(KeyTelegramToken, "")
	v.SetDefault(KeyTelegramChatID, "")
	v.SetDefault("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("TELEGRAM_REQUEST_TIMEOUT", "30s")

	v.SetDefault("RETRY_PERIOD", "10m")
	v.SetDefault("POLL_FROM_DATE", "0")

	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_FILE", "")

	return v
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if errs := c.problems(); len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// problems lists every semantic problem of an already parsed config.
func (c *Config) problems() []string {
	var errs []string

	// Validate required fields
	for _, name := range c.MissingCredentials() {
		errs = append(errs, name+" is required")
	}

	// Validate ranges
	if c.Poller.RetryPeriod <= 0 {
		errs = append(errs, "RETRY_PERIOD must be positive")
	}
	if c.Poller.FromDate < 0 {
		errs = append(errs, "POLL_FROM_DATE must not be negative")
	}
	if c.Practicum.Endpoint == "" {
		errs = append(errs, "PRACTICUM_ENDPOINT must not be empty")
	}

	return errs
}

func joinErrors(errs []string) error {
	return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
}

// MissingCredentials returns the names of required credentials that are empty.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Practicum.Token == "" {
		missing = append(missing, KeyPracticumToken)
	}
	if c.Telegram.Token == "" {
		missing = append(missing, KeyTelegramToken)
	}
	if c.Telegram.RawChatID == "" {
		missing = append(missing, KeyTelegramChatID)
	}
	return missing
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for value parsing ---

// getDuration accepts Go durations ("10m") and plain seconds ("600").
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}
