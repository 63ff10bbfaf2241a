// Package telegram adapts the Telegram Bot API to the messaging contracts:
// updates become messaging.Events fed to the pump, replies go out through
// Client.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
)

const (
	pollTimeout      = 60
	reconnectBackoff = 5 * time.Second
)

// EventSink receives converted updates. *messaging.Pump satisfies it.
type EventSink interface {
	Submit(ctx context.Context, ev messaging.Event) error
}

// updateSource is the long-polling side of *tgbotapi.BotAPI.
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// BotService owns the bot session: it receives updates and exposes the
// outbound Client.
type BotService struct {
	BotAPI *tgbotapi.BotAPI
	Client *Client

	updates updateSource
	backoff time.Duration
	log     zerolog.Logger
}

// NewBotService authorizes token against the Bot API.
func NewBotService(token string, log zerolog.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	bot.Debug = false
	log = log.With().Str("component", "telegram").Logger()
	log.Info().Str("account", bot.Self.UserName).Msg("authorized on account")

	return &BotService{
		BotAPI:  bot,
		Client:  NewClient(bot, log),
		updates: bot,
		backoff: reconnectBackoff,
		log:     log,
	}, nil
}

// Run polls updates and submits them to sink until ctx is cancelled. When the
// update channel closes unexpectedly polling restarts after a pause.
func (s *BotService) Run(ctx context.Context, sink EventSink) error {
	for {
		err := s.poll(ctx, sink)
		if ctx.Err() != nil || errors.Is(err, messaging.ErrPumpStopped) {
			return nil
		}
		s.log.Warn().Err(err).Dur("backoff", s.backoff).Msg("update polling stopped, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.backoff):
		}
	}
}

func (s *BotService) poll(ctx context.Context, sink EventSink) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := s.updates.GetUpdatesChan(u)
	defer s.updates.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("update channel closed")
			}
			ev, ok := ToEvent(update)
			if !ok {
				continue
			}
			if err := sink.Submit(ctx, ev); err != nil {
				if errors.Is(err, messaging.ErrQueueFull) {
					s.log.Warn().Int64("user_id", ev.UserID).Msg("dropping update, user backlog is full")
					continue
				}
				return err
			}
		}
	}
}

// ToEvent converts an update into the transport-neutral event. Updates
// without a human sender (channel posts, edits, service messages without
// From) are dropped.
func ToEvent(u tgbotapi.Update) (messaging.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil {
			return messaging.Event{}, false
		}
		ev := messaging.Event{
			Kind:       messaging.EventCallback,
			UserID:     cq.From.ID,
			ChatID:     cq.From.ID,
			Private:    true,
			Handle:     handle(cq.From),
			Text:       cq.Data,
			CallbackID: cq.ID,
		}
		if cq.Message != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.Private = cq.Message.Chat.IsPrivate()
		}
		return ev, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil {
		return messaging.Event{}, false
	}
	ev := messaging.Event{
		Kind:    messaging.EventOther,
		UserID:  msg.From.ID,
		ChatID:  msg.Chat.ID,
		Private: msg.Chat.IsPrivate(),
		Handle:  handle(msg.From),
	}

	switch {
	case msg.Contact != nil:
		ev.Kind = messaging.EventContact
		ev.Text = normalizePhone(msg.Contact.PhoneNumber)
	case len(msg.Photo) > 0:
		// Sizes are ordered smallest first.
		ev.Kind = messaging.EventMedia
		ev.Media = models.MediaItem{Kind: models.MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID}
		ev.Text = msg.Caption
	case msg.Video != nil:
		ev.Kind = messaging.EventMedia
		ev.Media = models.MediaItem{Kind: models.MediaVideo, FileID: msg.Video.FileID}
		ev.Text = msg.Caption
	case msg.Text != "":
		ev.Kind = messaging.EventText
		ev.Text = msg.Text
	}
	return ev, true
}

func handle(u *tgbotapi.User) string {
	if u == nil || u.UserName == "" {
		return ""
	}
	return "@" + u.UserName
}

// normalizePhone adds the leading plus Telegram omits for some clients.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}
