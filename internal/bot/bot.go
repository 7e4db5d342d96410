package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollbot/internal/config"
	"github.com/nikitkaralius/pollbot/internal/handlers"
	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/polls"
	"github.com/nikitkaralius/pollbot/internal/session"
	"github.com/nikitkaralius/pollbot/internal/telegram"
	"github.com/nikitkaralius/pollbot/internal/whatsapp"
)

// Platform is a messaging client with an observable connection lifecycle.
type Platform interface {
	polls.Messenger
	Initialize(ctx context.Context) error
	Notifier() *session.Notifier
	Close()
}

var (
	_ Platform = (*whatsapp.Client)(nil)
	_ Platform = (*telegram.Client)(nil)
)

// NewPlatform builds the client selected by cfg.Platform. Incoming
// messages are passed to messages when the platform delivers them.
func NewPlatform(cfg *config.Config, log zerolog.Logger, messages *handlers.MessageLogger) (Platform, error) {
	switch cfg.Platform {
	case config.PlatformWhatsApp:
		var opts []whatsapp.Option
		if messages != nil {
			opts = append(opts, whatsapp.WithMessageHandler(func(m models.IncomingMessage) { messages.HandleMessage(m) }))
		}
		return whatsapp.New(cfg, log, opts...), nil
	case config.PlatformTelegram:
		return telegram.New(cfg, log), nil
	}
	return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
}

type Runner struct {
	Platform     Platform
	Sender       *polls.Sender
	Messages     *handlers.MessageLogger
	ReadyTimeout time.Duration
	Log          zerolog.Logger
}

// Run connects, waits for the ready state, logs what the account can see
// and sends one poll. The platform is always closed before returning.
func (r *Runner) Run(ctx context.Context, pollType models.PollType) (*models.SendResult, error) {
	defer r.Platform.Close()

	if err := r.Platform.Initialize(ctx); err != nil {
		return nil, err
	}
	r.Log.Info().Dur("timeout", r.ReadyTimeout).Msg("waiting for client to become ready")
	if err := r.Platform.Notifier().WaitReady(ctx, r.ReadyTimeout); err != nil {
		return nil, fmt.Errorf("wait for ready: %w", err)
	}

	r.report(ctx)

	res, err := r.Sender.SendPollType(ctx, pollType)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) report(ctx context.Context) {
	resolver := r.Sender.Resolver()
	rep, err := resolver.Describe(ctx)
	if err != nil {
		r.Log.Warn().Err(err).Msg("could not load chat list")
		return
	}
	rep.Log(r.Log, resolver.Target())
	if rep.Target != nil && r.Messages != nil {
		r.Messages.SetTarget(*rep.Target)
	}
}
