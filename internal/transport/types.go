package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// SendOptions apply to every chunk of a message. Texts are always sent
// as plain text.
type SendOptions struct {
	DisablePreview bool
}

// Sender delivers plain text to a chat. Implementations must be safe for
// concurrent use: the log sink and the watcher loop share one.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
