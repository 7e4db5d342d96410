package polls

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollbot/internal/models"
)

// Config is fixed for the lifetime of a Sender.
type Config struct {
	TargetGroup string
	MaxRetries  int
	RetryDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{TargetGroup: "C-502 Cook Talks", MaxRetries: 3, RetryDelay: 5 * time.Second}
}

// Observer is told about every attempt and every wait between attempts.
type Observer interface {
	ObserveAttempt(attempt int, err error)
	ObserveRetryWait(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(int, error) {}
func (nopObserver) ObserveRetryWait(time.Duration) {}

type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Sender)

func WithObserver(o Observer) Option { return func(s *Sender) { s.observer = o } }

func WithSleep(fn SleepFunc) Option { return func(s *Sender) { s.sleep = fn } }

func WithClock(now func() time.Time) Option { return func(s *Sender) { s.now = now } }

// Sender resolves the target group and delivers a poll, retrying every
// failure with a fixed delay.
type Sender struct {
	cfg       Config
	messenger Messenger
	resolver  *Resolver
	log       zerolog.Logger
	observer  Observer
	sleep     SleepFunc
	now       func() time.Time
}

func NewSender(m Messenger, cfg Config, log zerolog.Logger, opts ...Option) *Sender {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	s := &Sender{
		cfg:       cfg,
		messenger: m,
		resolver:  NewResolver(m, cfg.TargetGroup),
		log:       log,
		observer:  nopObserver{},
		sleep:     sleepCtx,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sender) Resolver() *Resolver { return s.resolver }

func (s *Sender) SendDinnerPoll(ctx context.Context) (*models.SendResult, error) {
	return s.SendPoll(ctx, models.DinnerPoll())
}

func (s *Sender) SendBreakfastPoll(ctx context.Context) (*models.SendResult, error) {
	return s.SendPoll(ctx, models.BreakfastPoll())
}

func (s *Sender) SendPollType(ctx context.Context, t models.PollType) (*models.SendResult, error) {
	req, err := t.Request()
	if err != nil {
		return nil, err
	}
	return s.SendPoll(ctx, req)
}

// SendPoll makes up to MaxRetries attempts. The group is resolved again on
// every attempt. ctx is checked before each attempt and interrupts the
// wait between attempts.
func (s *Sender) SendPoll(ctx context.Context, req models.PollRequest) (*models.SendResult, error) {
	if len(req.Options) != 2 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidOptions, len(req.Options))
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(attempt-1, err, lastErr)
		}
		log := s.log.With().Int("attempt", attempt).Int("max_attempts", s.cfg.MaxRetries).Logger()
		log.Info().Str("question", req.Question).Msg("sending poll")

		res, err := s.attempt(ctx, req)
		s.observer.ObserveAttempt(attempt, err)
		if err == nil {
			res.Attempts = attempt
			log.Info().
				Str("question", req.Question).
				Strs("options", req.Options).
				Str("message_id", res.MessageID).
				Msg("poll sent")
			return res, nil
		}

		lastErr = err
		log.Error().Err(err).Msg("attempt failed")
		if attempt == s.cfg.MaxRetries {
			break
		}
		log.Info().Dur("retry_in", s.cfg.RetryDelay).Msg("retrying")
		s.observer.ObserveRetryWait(s.cfg.RetryDelay)
		if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
			return nil, cancelled(attempt, err, lastErr)
		}
	}

	s.log.Error().Err(lastErr).Int("attempts", s.cfg.MaxRetries).Msg("all retry attempts failed")
	return nil, &ExhaustedRetriesError{Attempts: s.cfg.MaxRetries, Err: lastErr}
}

func (s *Sender) attempt(ctx context.Context, req models.PollRequest) (*models.SendResult, error) {
	group, err := s.resolver.FindTargetGroup(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.messenger.SendPoll(ctx, group, req)
	if err != nil {
		return nil, &SendError{GroupID: group.ID, Err: err}
	}
	return &models.SendResult{MessageID: id, GroupID: group.ID, SentAt: s.now()}, nil
}

func cancelled(attempts int, ctxErr, lastErr error) error {
	if lastErr == nil {
		return fmt.Errorf("poll not sent after %d attempt(s): %w", attempts, ctxErr)
	}
	return fmt.Errorf("poll not sent after %d attempt(s): %w (last error: %v)", attempts, ctxErr, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
