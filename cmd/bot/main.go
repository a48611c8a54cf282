// Package main - точка входа бота, который следит за статусом проверки
// домашней работы и присылает новые вердикты в Telegram.
//
// Цикл работы: запрос к API → проверка ответа → разбор статуса →
// уведомление → пауза. Ошибки не останавливают бота: о каждой новой
// ошибке приходит одно сообщение, повторы только пишутся в лог.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/practicum-bots/homework-status-bot/config"
	"github.com/practicum-bots/homework-status-bot/internal/application/poller"
	"github.com/practicum-bots/homework-status-bot/internal/infrastructure/external/practicum"
	"github.com/practicum-bots/homework-status-bot/internal/infrastructure/external/telegram"
	"github.com/practicum-bots/homework-status-bot/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// runOptions управляет запуском бота.
type runOptions struct {
	EnvFile  string
	LogLevel string
	Once     bool
}

// app содержит собранные зависимости бота.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	closer io.Closer
	poller *poller.Poller
}

func run(ctx context.Context, opts runOptions) error {
	a, err := setup(opts)
	if err != nil {
		return err
	}
	defer a.closer.Close()

	if opts.Once {
		result := a.poller.RunOnce(ctx)
		a.log.Info("single poll cycle completed",
			logger.CycleID(result.CycleID),
			slog.Int("records", result.Records),
			slog.Bool("delivered", result.Delivered),
		)
		return result.Err
	}

	err = a.poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		a.log.Info("shutdown completed successfully")
		return nil
	}
	return err
}

func setup(opts runOptions) (*app, error) {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, closer, err := setupLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("starting homework status bot",
		"env", cfg.App.Environment,
		"version", version,
		"retry_period", cfg.Poller.RetryPeriod.String(),
	)
	log.Debug("Все токены успешно получены")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	apiConfig := practicum.DefaultClientConfig(cfg.Practicum.Endpoint, cfg.Practicum.Token)
	apiConfig.Timeout = cfg.Practicum.RequestTimeout
	apiConfig.Logger = log
	apiConfig.Debug = cfg.App.Debug
	apiClient := practicum.NewClient(apiConfig)

	tgConfig := telegram.DefaultClientConfig(cfg.Telegram.Token, cfg.Telegram.ChatID)
	tgConfig.APIEndpoint = cfg.Telegram.APIEndpoint
	tgConfig.Timeout = cfg.Telegram.RequestTimeout
	tgConfig.Logger = log
	tgConfig.Debug = cfg.App.Debug
	notifier, err := telegram.NewNotifier(tgConfig)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЦИКЛ ОПРОСА
	// ─────────────────────────────────────────────────────────────────────────
	p := poller.New(poller.Config{
		Interval:         cfg.Poller.RetryPeriod,
		InitialTimestamp: cfg.Poller.FromDate,
		Logger:           log,
	}, apiClient, notifier)

	return &app{cfg: cfg, log: log, closer: closer, poller: p}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadConfig загружает конфигурацию и логирует каждую отсутствующую переменную.
func loadConfig(opts runOptions) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFile: opts.EnvFile})
	if err != nil {
		if cfg != nil {
			for _, name := range cfg.MissingCredentials() {
				slog.Error("Отсутствие переменных окружения", "missing_token", name)
			}
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Observability.LogLevel = opts.LogLevel
	}
	return cfg, nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.ParseFormat(cfg.Observability.LogFormat)
	opts.FilePath = cfg.Observability.LogFile

	if cfg.IsProduction() {
		// JSON формат для production (лучше для агрегаторов логов)
		opts.Format = logger.FormatJSON
	}

	log, closer, err := logger.New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(log)

	return log, closer, nil
}
