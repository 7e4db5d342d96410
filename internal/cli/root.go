// Package cli defines the cobra command for the poll bot.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nikitkaralius/pollbot/internal/bot"
	"github.com/nikitkaralius/pollbot/internal/config"
	"github.com/nikitkaralius/pollbot/internal/handlers"
	"github.com/nikitkaralius/pollbot/internal/logging"
	"github.com/nikitkaralius/pollbot/internal/metrics"
	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/polls"
)

const pushTimeout = 10 * time.Second

type options struct {
	configPath     string
	configRequired bool
	platform       string
	group          string
	verbose        bool
}

type runFunc func(ctx context.Context, opts options, pollType models.PollType) error

// NewRootCmd returns the bot command. It sends one poll of the type named
// by its single argument and returns an error when the poll was not sent.
func NewRootCmd() *cobra.Command {
	return newRootCmd(run)
}

func newRootCmd(fn runFunc) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "bot [" + strings.Join(models.PollTypeNames(), "|") + "]",
		Short: "Send a meal poll to the cooking group",
		Long: `bot connects to the configured messaging platform, finds the target group
by its exact name and sends a Yes/No poll. The poll is retried a few times
before the command gives up and exits with status 1.`,
		Example: `  # Ask who is having dinner today
  bot dinner

  # Ask about breakfast through the Telegram bot account
  TELEGRAM_BOT_TOKEN=... bot breakfast --platform telegram`,
		ValidArgs:     models.PollTypeNames(),
		Args:          cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pollType, err := models.ParsePollType(args[0])
			if err != nil {
				return err
			}
			// arguments are valid from here on; failures are runtime errors
			cmd.SilenceUsage = true
			opts.configRequired = cmd.Flags().Changed("config")
			return fn(cmd.Context(), opts, pollType)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to YAML config file")
	f.StringVar(&opts.platform, "platform", "", "messaging platform: whatsapp or telegram")
	f.StringVar(&opts.group, "group", "", "exact name of the target group")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// Execute runs the root command with ctx and returns its error.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func run(ctx context.Context, opts options, pollType models.PollType) error {
	cfg, err := config.Load(opts.configPath, opts.configRequired, opts.apply)
	if err != nil {
		return err
	}

	log, loc, tzErr := logging.New(cfg.Log, os.Stderr)
	log = log.With().Str("run_id", uuid.NewString()).Logger()
	if tzErr != nil {
		log.Warn().Err(tzErr).Msg("falling back to local time")
	}

	start := time.Now()
	log.Info().
		Str("poll_type", string(pollType)).
		Str("platform", cfg.Platform).
		Str("local_time", start.In(loc).Format("2006-01-02 15:04:05 MST")).
		Msg("starting poll bot")

	recorder := metrics.New(string(pollType))
	messages := handlers.NewMessageLogger(log)
	platform, err := bot.NewPlatform(cfg, log, messages)
	if err != nil {
		return err
	}
	sender := polls.NewSender(platform, polls.Config{
		TargetGroup: cfg.TargetGroup,
		MaxRetries:  cfg.Retry.MaxAttempts,
		RetryDelay:  cfg.Retry.Delay,
	}, log, polls.WithObserver(recorder))

	runner := &bot.Runner{
		Platform:     platform,
		Sender:       sender,
		Messages:     messages,
		ReadyTimeout: cfg.ReadyTimeout,
		Log:          log,
	}
	res, runErr := runner.Run(ctx, pollType)

	recorder.ObserveRun(start, time.Now(), runErr)
	pushMetrics(log, recorder, cfg.Metrics)

	if runErr != nil {
		logFailure(log, runErr)
		return runErr
	}
	log.Info().
		Str("message_id", res.MessageID).
		Int("attempts", res.Attempts).
		Msg("poll sent, exiting")
	return nil
}

func (o options) apply(c *config.Config) {
	if o.platform != "" {
		c.Platform = o.platform
	}
	if o.group != "" {
		c.TargetGroup = o.group
	}
	if o.verbose {
		c.Log.Level = "debug"
		c.Telegram.Verbose = true
	}
}

func pushMetrics(log zerolog.Logger, r *metrics.Recorder, cfg config.MetricsConfig) {
	if cfg.PushgatewayURL == "" {
		return
	}
	// the run context may already be cancelled by a signal
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := r.Push(ctx, cfg.PushgatewayURL, cfg.Job); err != nil {
		log.Warn().Err(err).Str("url", cfg.PushgatewayURL).Msg("push metrics")
	}
}

func logFailure(log zerolog.Logger, err error) {
	var exhausted *polls.ExhaustedRetriesError
	switch {
	case errors.Is(err, context.Canceled):
		log.Warn().Err(err).Msg("interrupted, shutting down")
	case errors.As(err, &exhausted):
		log.Error().Err(exhausted.Err).Int("attempts", exhausted.Attempts).Msg("failed to send poll after all retries")
	default:
		log.Error().Err(err).Msg("fatal error")
	}
}
