// Package telegram sends the poll through the Telegram Bot API. Bots cannot
// enumerate their chats, so the chat list is built from configured chat IDs.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollbot/internal/config"
	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/session"
)

const platformName = "telegram"

type botAPI interface {
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Client struct {
	cfg         config.TelegramConfig
	sessionFile string
	log         zerolog.Logger
	notifier    *session.Notifier
	endpoint    string
	httpClient  *http.Client
	now         func() time.Time

	api botAPI
}

func New(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:         cfg.Telegram,
		sessionFile: cfg.SessionFile,
		log:         log.With().Str("platform", platformName).Logger(),
		notifier:    session.NewNotifier(),
		endpoint:    tgbotapi.APIEndpoint,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
}

func (c *Client) Notifier() *session.Notifier { return c.notifier }

// Initialize authorizes the bot token. The Bot API is stateless, so a
// successful getMe means the client is ready.
func (c *Client) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &session.InitializationError{Platform: platformName, Err: err}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(c.cfg.Token, c.endpoint, c.httpClient)
	if err != nil {
		c.notifier.MarkAuthFailed(err.Error())
		return &session.InitializationError{Platform: platformName, Err: err}
	}
	bot.Debug = c.cfg.Verbose
	c.api = bot

	c.log.Info().Msgf("Authorized on account @%s", bot.Self.UserName)
	c.notifier.MarkAuthenticated()
	info := models.SessionInfo{
		Platform:        platformName,
		AccountID:       strconv.FormatInt(bot.Self.ID, 10),
		PushName:        bot.Self.UserName,
		AuthenticatedAt: c.now(),
	}
	if err := session.WriteInfo(c.sessionFile, info); err != nil {
		c.log.Warn().Err(err).Msg("could not save session info")
	}
	c.notifier.MarkReady()
	return nil
}

// Groups looks up every configured chat. Chats the bot cannot see are
// skipped; an error is returned only when none could be loaded.
func (c *Client) Groups(ctx context.Context) ([]models.Group, error) {
	if c.api == nil {
		return nil, errors.New("telegram client is not initialized")
	}
	var (
		groups []models.Group
		errs   []error
	)
	for _, id := range c.cfg.ChatIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chatCfg := tgbotapi.ChatConfig{ChatID: id}
		chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: chatCfg})
		if err != nil {
			c.log.Warn().Err(err).Int64("chat_id", id).Msg("get chat")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
			continue
		}
		members, err := c.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{ChatConfig: chatCfg})
		if err != nil {
			c.log.Debug().Err(err).Int64("chat_id", id).Msg("get member count")
		}
		groups = append(groups, models.Group{
			ID:           strconv.FormatInt(chat.ID, 10),
			Name:         chat.Title,
			IsGroup:      chat.Type == "group" || chat.Type == "supergroup",
			Participants: members,
		})
	}
	if len(groups) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return groups, nil
}

// SendPoll posts a non-anonymous single-answer poll.
func (c *Client) SendPoll(ctx context.Context, group models.Group, req models.PollRequest) (string, error) {
	if c.api == nil {
		return "", errors.New("telegram client is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chatID, err := strconv.ParseInt(group.ID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse chat id %q: %w", group.ID, err)
	}
	pollCfg := tgbotapi.NewPoll(chatID, req.Question, req.Options...)
	pollCfg.IsAnonymous = false
	pollCfg.AllowsMultipleAnswers = false
	sent, err := c.api.Send(pollCfg)
	if err != nil {
		return "", err
	}
	if sent.Poll == nil {
		return "", errors.New("poll send returned no poll")
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (c *Client) Close() {
	c.api = nil
	c.notifier.MarkDisconnected("closed")
}
