package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitkaralius/pollbot/internal/config"
	"github.com/nikitkaralius/pollbot/internal/handlers"
	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/polls"
	"github.com/nikitkaralius/pollbot/internal/session"
)

type fakePlatform struct {
	notifier *session.Notifier
	initErr  error
	ready    bool
	groups   []models.Group
	sendErrs []error
	sends    int
	closed   bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		notifier: session.NewNotifier(),
		ready:    true,
		groups:   []models.Group{{ID: "3@g.us", Name: "C-502 Cook Talks", IsGroup: true, Participants: 5}},
	}
}

func (f *fakePlatform) Initialize(context.Context) error {
	if f.initErr != nil {
		return &session.InitializationError{Platform: "fake", Err: f.initErr}
	}
	f.notifier.MarkAuthenticated()
	if f.ready {
		f.notifier.MarkReady()
	}
	return nil
}

func (f *fakePlatform) Notifier() *session.Notifier { return f.notifier }

func (f *fakePlatform) Groups(context.Context) ([]models.Group, error) { return f.groups, nil }

func (f *fakePlatform) SendPoll(context.Context, models.Group, models.PollRequest) (string, error) {
	i := f.sends
	f.sends++
	if i < len(f.sendErrs) && f.sendErrs[i] != nil {
		return "", f.sendErrs[i]
	}
	return "MSG1", nil
}

func (f *fakePlatform) Close() { f.closed = true }

func newRunner(p *fakePlatform) *Runner {
	noSleep := func(context.Context, time.Duration) error { return nil }
	return &Runner{
		Platform:     p,
		Sender:       polls.NewSender(p, polls.DefaultConfig(), zerolog.Nop(), polls.WithSleep(noSleep)),
		Messages:     handlers.NewMessageLogger(zerolog.Nop()),
		ReadyTimeout: 50 * time.Millisecond,
		Log:          zerolog.Nop(),
	}
}

func TestRunSendsOnce(t *testing.T) {
	p := newFakePlatform()
	res, err := newRunner(p).Run(context.Background(), models.PollDinner)
	require.NoError(t, err)
	assert.Equal(t, "MSG1", res.MessageID)
	assert.Equal(t, 1, p.sends)
	assert.True(t, p.closed)
}

func TestRunInitializationError(t *testing.T) {
	p := newFakePlatform()
	p.initErr = errors.New("no browser")
	_, err := newRunner(p).Run(context.Background(), models.PollDinner)

	var initErr *session.InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, 0, p.sends)
	assert.True(t, p.closed)
}

func TestRunNeverReady(t *testing.T) {
	p := newFakePlatform()
	p.ready = false
	_, err := newRunner(p).Run(context.Background(), models.PollBreakfast)
	require.ErrorIs(t, err, session.ErrReadyTimeout)
	assert.Equal(t, 0, p.sends)
	assert.True(t, p.closed)
}

func TestRunExhaustedRetries(t *testing.T) {
	p := newFakePlatform()
	boom := errors.New("boom")
	p.sendErrs = []error{boom, boom, boom}
	_, err := newRunner(p).Run(context.Background(), models.PollDinner)

	var exhausted *polls.ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, p.sends)
}

func TestRunSetsMessageTarget(t *testing.T) {
	p := newFakePlatform()
	r := newRunner(p)
	_, err := r.Run(context.Background(), models.PollDinner)
	require.NoError(t, err)
	assert.True(t, r.Messages.HandleMessage(models.IncomingMessage{ChatID: "3@g.us", IsGroup: true}))
}

func TestNewPlatform(t *testing.T) {
	cfg := config.Default()
	p, err := NewPlatform(&cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg.Platform = config.PlatformTelegram
	p, err = NewPlatform(&cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg.Platform = "signal"
	_, err = NewPlatform(&cfg, zerolog.Nop(), nil)
	require.Error(t, err)
}
