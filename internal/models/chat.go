package models

import "time"

// Group is a chat as listed by the messaging platform. ID is opaque to
// everything outside the platform package that produced it.
type Group struct {
	ID           string
	Name         string
	IsGroup      bool
	Participants int
}

// SessionInfo is written to the session metadata file after each
// successful authentication.
type SessionInfo struct {
	Platform        string    `json:"platform"`
	AccountID       string    `json:"account_id"`
	PushName        string    `json:"push_name,omitempty"`
	BusinessName    string    `json:"business_name,omitempty"`
	DevicePlatform  string    `json:"device_platform,omitempty"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// IncomingMessage is a received chat message, reduced to what the bot logs.
type IncomingMessage struct {
	ChatID    string
	Sender    string
	PushName  string
	Text      string
	IsGroup   bool
	Timestamp time.Time
}
