package whatsapp

import (
	"fmt"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/nikitkaralius/pollbot/internal/models"
	"github.com/nikitkaralius/pollbot/internal/session"
)

func (c *Client) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		c.log.Info().Str("jid", e.ID.String()).Msg("WhatsApp paired")
		c.notifier.MarkAuthenticated()
		c.writeSessionInfo(models.SessionInfo{
			Platform:       platformName,
			AccountID:      e.ID.String(),
			BusinessName:   e.BusinessName,
			DevicePlatform: e.Platform,
		})
	case *events.PairError:
		c.notifier.MarkAuthFailed(fmt.Sprintf("pairing failed: %v", e.Error))
	case *events.Connected:
		c.log.Info().Msg("WhatsApp authenticated")
		c.notifier.MarkAuthenticated()
		c.writeStoredSessionInfo()
		c.log.Info().Msg("WhatsApp client is ready")
		c.notifier.MarkReady()
	case *events.LoggedOut:
		c.log.Error().Bool("on_connect", e.OnConnect).Msg("WhatsApp session logged out")
		c.notifier.MarkAuthFailed(fmt.Sprintf("logged out (reason %v)", e.Reason))
	case *events.ConnectFailure:
		c.log.Error().Str("message", e.Message).Msg("WhatsApp connect failure")
		c.notifier.MarkAuthFailed(fmt.Sprintf("connect failure (reason %v): %s", e.Reason, e.Message))
	case *events.TemporaryBan:
		c.notifier.MarkAuthFailed(fmt.Sprintf("temporary ban: %v", e))
	case *events.ClientOutdated:
		c.notifier.MarkAuthFailed("client outdated")
	case *events.StreamReplaced:
		c.log.Warn().Msg("WhatsApp stream replaced by another connection")
		c.notifier.MarkDisconnected("stream replaced")
	case *events.Disconnected:
		c.log.Info().Msg("WhatsApp client disconnected")
		c.notifier.MarkDisconnected("disconnected")
	case *events.Message:
		if c.onMessage == nil {
			return
		}
		text := e.Message.GetConversation()
		if text == "" {
			text = e.Message.GetExtendedTextMessage().GetText()
		}
		c.onMessage(models.IncomingMessage{
			ChatID:    e.Info.Chat.String(),
			Sender:    e.Info.Sender.String(),
			PushName:  e.Info.PushName,
			Text:      text,
			IsGroup:   e.Info.IsGroup,
			Timestamp: e.Info.Timestamp,
		})
	}
}

// writeStoredSessionInfo records the identity of a session restored from
// the store. A fresh pairing was already recorded on PairSuccess.
func (c *Client) writeStoredSessionInfo() {
	c.mu.Lock()
	written := c.infoWritten
	c.mu.Unlock()
	if written || c.device == nil || c.device.ID == nil {
		return
	}
	c.writeSessionInfo(models.SessionInfo{
		Platform:  platformName,
		AccountID: c.device.ID.String(),
		PushName:  c.device.PushName,
	})
}

func (c *Client) writeSessionInfo(info models.SessionInfo) {
	info.AuthenticatedAt = c.now()
	if err := session.WriteInfo(c.sessionFile, info); err != nil {
		c.log.Warn().Err(err).Msg("could not save session info")
		return
	}
	c.mu.Lock()
	c.infoWritten = true
	c.mu.Unlock()
	c.log.Info().Str("path", c.sessionFile).Msg("session saved to file")
}
