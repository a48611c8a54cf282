// Package telegram implements the chat notifier on top of the Telegram Bot API.
// The bot only ever writes to one configured chat; it does not read updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Telegram notifier.
type ClientConfig struct {
	// Token is the Telegram Bot API token
	Token string

	// ChatID is the destination chat for every message
	ChatID int64

	// APIEndpoint is the Bot API URL template (default: tgbotapi.APIEndpoint)
	APIEndpoint string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables tgbotapi request logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string, chatID int64) ClientConfig {
	return ClientConfig{
		Token:       token,
		ChatID:      chatID,
		APIEndpoint: tgbotapi.APIEndpoint,
		Timeout:     30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Notifier sends plain text messages to a fixed chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewNotifier creates a notifier. The token is checked with getMe: a 401
// answer is returned as an error, any other failure is only logged so that
// a Bot API outage at startup does not stop the poller.
func NewNotifier(config ClientConfig) (*Notifier, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.APIEndpoint == "" {
		config.APIEndpoint = tgbotapi.APIEndpoint
	}

	bot := &tgbotapi.BotAPI{
		Token:  config.Token,
		Debug:  config.Debug,
		Buffer: 100,
		Client: &http.Client{Timeout: config.Timeout},
	}
	bot.SetAPIEndpoint(config.APIEndpoint)

	self, err := bot.GetMe()
	switch err = wrapAPIError(err); {
	case err == nil:
		bot.Self = self
		config.Logger.Info("telegram bot authorized", "username", self.UserName)
	case IsUnauthorized(err):
		return nil, fmt.Errorf("create bot: %w", err)
	default:
		config.Logger.Warn("telegram bot api unavailable, continuing", "error", err)
	}

	return &Notifier{
		bot:    bot,
		chatID: config.ChatID,
		logger: config.Logger,
	}, nil
}

// Send delivers text to the configured chat. A nil error means the message
// was accepted by Telegram.
func (n *Notifier) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		err = wrapAPIError(err)
		n.logger.Error("failed to send telegram message",
			"chat_id", n.chatID,
			"error", err,
		)
		return fmt.Errorf("send message: %w", err)
	}

	n.logger.Debug("Успешная отправка сообщения", "text", text)
	return nil
}

// ChatID returns the destination chat.
func (n *Notifier) ChatID() int64 {
	return n.chatID
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError represents a Telegram API error.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// wrapAPIError converts tgbotapi errors into *APIError.
func wrapAPIError(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{
			Code:        tgErr.Code,
			Description: tgErr.Message,
			RetryAfter:  tgErr.RetryAfter,
		}
	}
	return err
}

// IsChatNotFound checks if the error indicates chat not found.
func IsChatNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		apiErr.Description == "Bad Request: chat not found"
}

// IsUnauthorized checks if the error indicates an invalid bot token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}
