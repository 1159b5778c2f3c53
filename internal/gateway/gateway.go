package gateway

import (
	"context"
	"strings"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Name identifies the gateway in logs
	Name() string
	// Start runs the message listening loop until Stop is called
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Handler answers one chat message. *agent.Agent satisfies it.
type Handler interface {
	HandleChat(ctx context.Context, chatID, query string) string
}

const throttledReply = "You're sending messages too quickly. Please wait a moment and try again."

// reply produces the answer for an incoming message. ok is false when the
// message should be ignored.
func reply(ctx context.Context, h Handler, limiter *ChatLimiter, chatID, text string) (answer string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "/start") {
		return "", false
	}
	if limiter != nil && !limiter.Allow(chatID) {
		return throttledReply, true
	}
	return h.HandleChat(ctx, chatID, text), true
}
