package handlers

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/nikitkaralius/pollbot/internal/models"
)

// MessageLogger logs messages that arrive from the target group while the
// client is connected. Everything else is ignored.
type MessageLogger struct {
	log zerolog.Logger

	mu     sync.RWMutex
	target models.Group
}

func NewMessageLogger(log zerolog.Logger) *MessageLogger {
	return &MessageLogger{log: log}
}

// SetTarget is called once the target group has been resolved.
func (h *MessageLogger) SetTarget(g models.Group) {
	h.mu.Lock()
	h.target = g
	h.mu.Unlock()
}

// HandleMessage reports whether msg came from the target group.
func (h *MessageLogger) HandleMessage(msg models.IncomingMessage) bool {
	h.mu.RLock()
	target := h.target
	h.mu.RUnlock()

	if target.ID == "" || !msg.IsGroup || msg.ChatID != target.ID {
		return false
	}
	h.log.Debug().
		Str("group", target.Name).
		Str("sender", msg.Sender).
		Str("push_name", msg.PushName).
		Str("text", msg.Text).
		Time("sent_at", msg.Timestamp).
		Msg("message from target group")
	return true
}
