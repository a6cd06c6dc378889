package bot

import (
	"context"
	"errors"
	"time"

	"finbot/dialog"
)

// ErrConflict reports that another process is already polling with the same
// credential. The poll loop retries with back-off before giving up.
var ErrConflict = errors.New("another instance is polling")

// Message is an inbound chat message.
type Message struct {
	ChatID int64
	UserID int64
	Text   string
}

// Callback is an inline-button press.
type Callback struct {
	ID     string
	ChatID int64
	UserID int64
	Data   string
}

// Update is one inbound chat event. Exactly one of Message or Callback is
// set.
type Update struct {
	ID       int64
	Message  *Message
	Callback *Callback
}

// Transport sends outbound chat traffic. The dialog machine stays agnostic
// of the concrete chat service behind it.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, buttons [][]dialog.Button) error
	SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Poller fetches inbound updates. Poll blocks up to timeout waiting for
// traffic and returns ErrConflict when another poller holds the credential.
type Poller interface {
	Poll(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}
