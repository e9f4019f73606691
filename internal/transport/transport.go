// Package transport defines the messaging contract and its chat-service
// adapters. Adapters translate provider APIs into the neutral Transport
// and Source interfaces the rest of the bot works against.
package transport

import "context"

// Button is a single reply-keyboard button.
type Button struct {
	Text string
}

// Menu is a reply keyboard, rows of buttons. A nil Menu removes any
// previously shown keyboard.
type Menu struct {
	Rows [][]Button
}

// Inbound is one user message normalized across providers.
type Inbound struct {
	Transport string
	UserID    string
	FirstName string
	LastName  string
	Username  string
	Text      string
}

// Transport sends outbound messages. Implementations return
// errors.ErrRecipientBlocked when the recipient has blocked the bot so
// callers can mark the user instead of retrying.
type Transport interface {
	Name() string
	Send(ctx context.Context, userID, text string, menu *Menu) error
	SendAudio(ctx context.Context, userID, fileID, caption string) error
}

// Source produces inbound messages. Run blocks until the context is
// cancelled, pushing messages into the channel given at construction.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}
