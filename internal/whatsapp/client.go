// Package whatsapp connects to WhatsApp as a linked device and exposes the
// group list and poll sending the bot needs.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"github.com/nikitkaralius/pollbot/internal/config"
	"github.com/nikitkaralius/pollbot/internal/logging"
	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/session"
	"github.com/nikitkaralius/pollbot/internal/storage"
)

const platformName = "whatsapp"

// api is the subset of *whatsmeow.Client used after connecting.
type api interface {
	GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error)
	BuildPollCreation(name string, optionNames []string, selectableOptionCount int) *waE2E.Message
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

type Client struct {
	cfg         config.WhatsAppConfig
	storeCfg    config.StoreConfig
	sessionFile string
	ci          bool
	log         zerolog.Logger
	notifier    *session.Notifier
	qrOut       io.Writer
	now         func() time.Time

	onMessage func(models.IncomingMessage)

	store  *storage.Store
	device *store.Device
	wa     *whatsmeow.Client
	api    api

	mu          sync.Mutex
	infoWritten bool
}

type Option func(*Client)

// WithMessageHandler registers a callback for every received message.
func WithMessageHandler(fn func(models.IncomingMessage)) Option {
	return func(c *Client) { c.onMessage = fn }
}

// WithQROutput redirects the terminal QR rendering (stdout by default).
func WithQROutput(w io.Writer) Option {
	return func(c *Client) { c.qrOut = w }
}

func New(cfg *config.Config, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:         cfg.WhatsApp,
		storeCfg:    cfg.Store,
		sessionFile: cfg.SessionFile,
		ci:          cfg.CI,
		log:         log.With().Str("platform", platformName).Logger(),
		notifier:    session.NewNotifier(),
		qrOut:       os.Stdout,
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Notifier() *session.Notifier { return c.notifier }

// Initialize opens the persisted identity and connects. A device without
// a stored identity is paired through a QR code printed to the terminal.
func (c *Client) Initialize(ctx context.Context) error {
	c.log.Info().Msg("starting WhatsApp client")
	if err := c.initialize(ctx); err != nil {
		c.log.Error().Err(err).Msg("failed to initialize WhatsApp client")
		c.Close()
		return &session.InitializationError{Platform: platformName, Err: err}
	}
	c.log.Info().Msg("WhatsApp client initialized")
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	if err := session.EnsureDir(c.cfg.AuthDir); err != nil {
		return err
	}
	st, err := storage.NewStore(c.storeCfg, c.cfg.AuthDir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	c.store = st
	if err := storage.WaitForDB(ctx, st.DB, 30*time.Second); err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	container := sqlstore.NewWithDB(st.DB, st.Dialect, logging.NewWALogger(c.log, "store"))
	if err := container.Upgrade(ctx); err != nil {
		return fmt.Errorf("upgrade session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}
	if c.cfg.DeviceName != "" {
		store.SetOSInfo(c.cfg.DeviceName, [3]uint32{1, 0, 0})
	}

	c.device = device
	wa := whatsmeow.NewClient(device, logging.NewWALogger(c.log, "client"))
	wa.AddEventHandler(c.handleEvent)
	c.wa = wa
	c.api = wa

	if wa.Store.ID == nil {
		qr, err := wa.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get QR channel: %w", err)
		}
		go c.consumeQR(qr)
	} else {
		c.log.Info().Str("jid", wa.Store.ID.String()).Msg("using stored session")
	}

	if err := wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *Client) consumeQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			c.notifier.MarkQRNeeded()
			c.log.Info().Dur("valid_for", item.Timeout).Msg("QR code received, scan it with WhatsApp")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, c.qrOut)
			if c.ci {
				c.log.Info().Str("qr", item.Code).Msg("QR code for CI setup")
			}
		case "success":
			c.log.Info().Msg("QR code scanned")
		case "timeout":
			c.notifier.MarkAuthFailed("QR code was not scanned in time")
		default:
			reason := item.Event
			if item.Error != nil {
				reason = item.Error.Error()
			}
			c.notifier.MarkAuthFailed("pairing failed: " + reason)
		}
	}
}

// Groups lists every group the account has joined.
func (c *Client) Groups(ctx context.Context) ([]models.Group, error) {
	if c.api == nil {
		return nil, fmt.Errorf("whatsapp client is not initialized")
	}
	infos, err := c.api.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]models.Group, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		groups = append(groups, models.Group{
			ID:           info.JID.String(),
			Name:         info.Name,
			IsGroup:      info.JID.Server == types.GroupServer,
			Participants: len(info.Participants),
		})
	}
	return groups, nil
}

// SendPoll sends a single-choice poll to the group.
func (c *Client) SendPoll(ctx context.Context, group models.Group, req models.PollRequest) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("whatsapp client is not initialized")
	}
	jid, err := types.ParseJID(group.ID)
	if err != nil {
		return "", fmt.Errorf("parse group id %q: %w", group.ID, err)
	}
	msg := c.api.BuildPollCreation(req.Question, req.Options, 1)
	resp, err := c.api.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// Close disconnects and releases the session store.
func (c *Client) Close() {
	if c.wa != nil {
		c.log.Info().Msg("cleaning up WhatsApp client")
		c.wa.Disconnect()
		c.wa = nil
		c.api = nil
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close session store")
		}
		c.store = nil
	}
	c.notifier.MarkDisconnected("closed")
}
