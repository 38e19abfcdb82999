package transport

import "context"

// Message is a single inbound chat message, normalized away from the
// platform-specific update shape.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

// ChatTarget addresses an outbound message.
type ChatTarget struct {
	ChatID int64
}

// MessageRef identifies a message that was sent, for callers that care.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// SendOptions tweaks outbound delivery.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the chat-platform boundary. Start pushes inbound messages to out
// until the context is cancelled or Stop is called.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
