// Package messaging defines the transport-neutral events and replies the bot
// core works with, and the Messenger contract a transport implements.
package messaging

import (
	"context"
	"strings"

	"qabulxona/backend/internal/models"
)

// EventKind classifies an inbound update.
type EventKind int

const (
	EventText EventKind = iota
	EventMedia
	EventContact
	EventCallback
	// EventOther covers stickers, voice notes and anything else the wizard
	// cannot use.
	EventOther
)

// Event is one inbound update from a user.
type Event struct {
	Kind    EventKind
	UserID  int64
	ChatID  int64
	Private bool
	Handle  string
	// Text is the message text, the media caption, the shared phone number or
	// the callback data depending on Kind.
	Text       string
	Media      models.MediaItem
	CallbackID string
}

// IsCommand reports whether the event is a slash command.
func (e Event) IsCommand() bool {
	return e.Kind == EventText && strings.HasPrefix(strings.TrimSpace(e.Text), "/")
}

// Command splits "/edit@bot 12 34" into ("edit", "12 34").
func (e Event) Command() (name, args string) {
	if !e.IsCommand() {
		return "", ""
	}
	text := strings.TrimSpace(e.Text)
	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// Button is one keyboard key. Inline keyboards use Data as the callback
// payload; reply keyboards send Text back as a message.
type Button struct {
	Text           string
	Data           string
	RequestContact bool
}

// Keyboard is attached to a reply.
type Keyboard struct {
	Rows   [][]Button
	Inline bool
	// Remove hides a previously shown reply keyboard.
	Remove bool
}

// InlineKeyboard builds an inline keyboard from rows.
func InlineKeyboard(rows ...[]Button) *Keyboard {
	return &Keyboard{Rows: rows, Inline: true}
}

// Row is a convenience for a single keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Reply is an outbound text message.
type Reply struct {
	ChatID   int64
	Text     string
	Keyboard *Keyboard
}

// Document is an outbound file.
type Document struct {
	Name    string
	Data    []byte
	Caption string
}

// Messenger is the outbound side of the transport.
type Messenger interface {
	Send(ctx context.Context, r Reply) error
	SendMedia(ctx context.Context, chatID int64, item models.MediaItem, caption string) error
	SendDocument(ctx context.Context, chatID int64, doc Document) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// CheckChat verifies the bot can still post to chatID.
	CheckChat(ctx context.Context, chatID int64) error
}

// SendText sends plain text without a keyboard.
func SendText(ctx context.Context, m Messenger, chatID int64, text string) error {
	return m.Send(ctx, Reply{ChatID: chatID, Text: text})
}
