package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
)

// MaxMessageLength is the Bot API limit for one text message, in runes.
const MaxMessageLength = 4096

// maxRetryAfter caps how long a flood-limited send waits before its single retry.
const maxRetryAfter = 30 * time.Second

// botAPI is the part of *tgbotapi.BotAPI the client sends through.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client implements messaging.Messenger on top of the Bot API.
type Client struct {
	api botAPI
	log zerolog.Logger
}

var _ messaging.Messenger = (*Client)(nil)

// NewClient wraps an authorized bot.
func NewClient(api botAPI, log zerolog.Logger) *Client {
	return &Client{api: api, log: log.With().Str("component", "telegram").Logger()}
}

// Send delivers r, splitting texts longer than MaxMessageLength. The keyboard
// is attached to the last part only.
func (c *Client) Send(ctx context.Context, r messaging.Reply) error {
	parts := splitText(r.Text, MaxMessageLength)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(r.ChatID, part)
		if i == len(parts)-1 && r.Keyboard != nil {
			msg.ReplyMarkup = replyMarkup(r.Keyboard)
		}
		if err := c.send(ctx, msg); err != nil {
			return fmt.Errorf("send message to %d: %w", r.ChatID, err)
		}
	}
	return nil
}

// SendMedia re-sends a stored photo or video by file id.
func (c *Client) SendMedia(ctx context.Context, chatID int64, item models.MediaItem, caption string) error {
	caption = truncate(caption, config.MaxCaptionLength)

	var msg tgbotapi.Chattable
	switch item.Kind {
	case models.MediaPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(item.FileID))
		photo.Caption = caption
		msg = photo
	case models.MediaVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(item.FileID))
		video.Caption = caption
		msg = video
	default:
		return fmt.Errorf("unsupported media kind %q", item.Kind)
	}
	if err := c.send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to %d: %w", item.Kind, chatID, err)
	}
	return nil
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, doc messaging.Document) error {
	file := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data})
	file.Caption = truncate(doc.Caption, config.MaxCaptionLength)
	if err := c.send(ctx, file); err != nil {
		return fmt.Errorf("send document %s to %d: %w", doc.Name, chatID, err)
	}
	return nil
}

// AnswerCallback clears the loading state of an inline button.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// CheckChat posts a typing action; it fails once the bot was removed from
// the chat or lost the right to write there.
func (c *Client) CheckChat(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("check chat %d: %w", chatID, err)
	}
	return nil
}

// send retries once when Telegram answers 429 with a retry_after hint.
func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Send(msg)
	wait, limited := retryAfter(err)
	if !limited {
		return err
	}

	c.log.Warn().Dur("retry_after", wait).Msg("flood limited by telegram, retrying")
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	_, err = c.api.Send(msg)
	return err
}

func retryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if err == nil || !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
		return 0, false
	}
	wait := time.Duration(apiErr.RetryAfter) * time.Second
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait, true
}

func replyMarkup(kb *messaging.Keyboard) any {
	if kb.Remove {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	if kb.Inline {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			if b.RequestContact {
				buttons = append(buttons, tgbotapi.NewKeyboardButtonContact(b.Text))
				continue
			}
			buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Text))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// splitText cuts text into parts of at most limit runes, preferring line breaks.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if nl := lastIndexRune(runes[:limit], '\n'); nl > limit/2 {
			cut = nl + 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-1]) + "…"
}
