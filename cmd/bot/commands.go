package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/practicum-bots/homework-status-bot/config"
)

// newRootCmd собирает дерево команд. Команда по умолчанию запускает цикл опроса.
func newRootCmd(out io.Writer) *cobra.Command {
	opts := runOptions{}

	rootCmd := &cobra.Command{
		Use:   "homework-bot",
		Short: "Homework review status notifier",
		Long: `homework-bot polls the homework status API and sends every new review
verdict to a Telegram chat.

Credentials are read from PRACTICUM_TOKEN, TELEGRAM_TOKEN and TELEGRAM_CHAT_ID,
either in the environment or in a .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "dotenv file with credentials")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			o := opts
			o.Once = true
			return run(cmd.Context(), o)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and print it with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(onceCmd, checkCmd, versionCmd)
	rootCmd.Version = version

	return rootCmd
}

// printConfig печатает итоговую конфигурацию без секретов.
func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "environment:      %s\n", cfg.App.Environment)
	fmt.Fprintf(w, "endpoint:         %s\n", cfg.Practicum.Endpoint)
	fmt.Fprintf(w, "practicum token:  %s\n", mask(cfg.Practicum.Token))
	fmt.Fprintf(w, "telegram token:   %s\n", mask(cfg.Telegram.Token))
	fmt.Fprintf(w, "telegram chat id: %d\n", cfg.Telegram.ChatID)
	fmt.Fprintf(w, "retry period:     %s\n", cfg.Poller.RetryPeriod)
	fmt.Fprintf(w, "from date:        %d\n", cfg.Poller.FromDate)
	fmt.Fprintf(w, "log level:        %s\n", cfg.Observability.LogLevel)
}

// mask оставляет видимыми только последние четыре символа.
func mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
