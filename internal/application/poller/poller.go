// Package poller contains the homework status poll loop.
// The loop owns the only mutable state of the bot: the lower bound of the
// next status query and the signature of the last reported failure.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/practicum-bots/homework-status-bot/internal/domain/homework"
	"github.com/practicum-bots/homework-status-bot/pkg/logger"
)

// DefaultInterval is the pause between two poll cycles.
const DefaultInterval = 10 * time.Minute

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Fetcher queries homework statuses changed since a unix timestamp.
type Fetcher interface {
	Fetch(ctx context.Context, timestamp int64) (any, error)
}

// Notifier delivers a text message to the student. A nil error means the
// message was delivered.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// SleepFunc pauses between cycles. It returns early only if ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// PollState is the loop state carried between cycles.
type PollState struct {
	// LastTimestamp is the from_date of the next query (unix seconds).
	LastTimestamp int64

	// LastError is the signature of the last failure the student was told about.
	LastError *homework.Signature
}

// CycleResult describes one poll cycle.
type CycleResult struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration

	// Records is the number of homework records in the response.
	Records int

	// Message is the verdict or failure text handed to the notifier, if any.
	Message string

	// Delivered is true when Message was accepted by the notifier.
	Delivered bool

	// Suppressed is true when Err repeated the last reported failure.
	Suppressed bool

	// Err is the failure of the cycle, already handled by the loop.
	Err error
}

// ══════════════════════════════════════════════════════════════════════════════
// POLLER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Poller.
type Config struct {
	// Interval between cycles.
	Interval time.Duration

	// InitialTimestamp is the from_date of the first query.
	InitialTimestamp int64

	// Logger for structured logging.
	Logger *slog.Logger

	// Sleep overrides the pause between cycles (tests).
	Sleep SleepFunc
}

// Poller runs fetch → validate → parse → notify → sleep forever.
type Poller struct {
	interval time.Duration
	fetcher  Fetcher
	notifier Notifier
	logger   *slog.Logger
	sleep    SleepFunc

	state PollState
}

// New creates a new Poller.
func New(cfg Config, fetcher Fetcher, notifier Notifier) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	return &Poller{
		interval: cfg.Interval,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   cfg.Logger.With(logger.Component("poller")),
		sleep:    cfg.Sleep,
		state:    PollState{LastTimestamp: cfg.InitialTimestamp},
	}
}

// State returns a copy of the current loop state.
func (p *Poller) State() PollState {
	s := p.state
	if s.LastError != nil {
		sig := *s.LastError
		s.LastError = &sig
	}
	return s
}

// Run executes poll cycles until ctx is cancelled. Failures never stop the
// loop; the pause after each cycle is unconditional.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting homework poller",
		logger.Timestamp(p.state.LastTimestamp),
		logger.Interval(p.interval),
	)

	for {
		p.RunOnce(ctx)

		if err := p.sleep(ctx, p.interval); err != nil {
			p.logger.Info("stopping homework poller", logger.Timestamp(p.state.LastTimestamp))
			return err
		}
	}
}

// RunOnce executes a single poll cycle and handles its failure.
func (p *Poller) RunOnce(ctx context.Context) CycleResult {
	result := CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := p.logger.With(logger.CycleID(result.CycleID))

	if err := p.poll(ctx, log, &result); err != nil {
		result.Err = err
		p.handleError(ctx, log, &result)
	}

	result.Duration = time.Since(result.StartedAt)
	log.Debug("poll cycle finished",
		slog.Int("records", result.Records),
		slog.Bool("delivered", result.Delivered),
		logger.Latency(result.Duration),
	)
	return result
}

// poll runs steps fetch, validate, parse and notify.
func (p *Poller) poll(ctx context.Context, log *slog.Logger, result *CycleResult) error {
	body, err := p.fetcher.Fetch(ctx, p.state.LastTimestamp)
	if err != nil {
		return fmt.Errorf("fetch homework statuses: %w", err)
	}

	homeworks, err := homework.ValidateResponse(body, log)
	if err != nil {
		return err
	}
	result.Records = len(homeworks)

	if len(homeworks) == 0 {
		log.Debug("no homework status changes", logger.Timestamp(p.state.LastTimestamp))
		return nil
	}

	// Later records in the batch are picked up by the next window.
	message, err := homework.ParseStatus(homeworks[0])
	if err != nil {
		return err
	}
	result.Message = message

	if err := p.notifier.Send(ctx, message); err != nil {
		log.Error("failed to deliver verdict, window will be re-queried",
			logger.Err(err),
			logger.Timestamp(p.state.LastTimestamp),
		)
		return nil
	}
	result.Delivered = true

	if next, ok := homework.CurrentDate(body); ok {
		p.advance(log, next)
	} else {
		log.Warn("response has no current_date, timestamp unchanged")
	}
	return nil
}

// advance moves LastTimestamp forward; it never moves backwards.
func (p *Poller) advance(log *slog.Logger, next int64) {
	if next <= p.state.LastTimestamp {
		log.Debug("current_date not ahead of last timestamp",
			slog.Int64("current_date", next),
			logger.Timestamp(p.state.LastTimestamp),
		)
		return
	}
	p.state.LastTimestamp = next
	log.Info("timestamp advanced", logger.Timestamp(next))
}

// handleError reports a failure once per distinct signature.
func (p *Poller) handleError(ctx context.Context, log *slog.Logger, result *CycleResult) {
	sig := homework.SignatureOf(result.Err)
	text := FailureMessage(result.Err)

	if p.state.LastError != nil && *p.state.LastError == sig {
		result.Suppressed = true
		log.Error(text, logger.Signature(sig.String()), slog.Bool("suppressed", true))
		return
	}

	log.Error(text, logger.Signature(sig.String()))

	result.Message = text
	if err := p.notifier.Send(ctx, text); err != nil {
		log.Error("failed to report failure", logger.Err(err))
		return
	}
	result.Delivered = true
	p.state.LastError = &sig
}

// FailureMessage formats the notification sent for a failed cycle.
func FailureMessage(err error) string {
	return fmt.Sprintf("Сбой в работе программы: %v", err)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
