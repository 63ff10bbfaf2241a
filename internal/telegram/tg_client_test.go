package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErrs []error
	reqErr   error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func newTestClient() (*Client, *fakeAPI) {
	api := &fakeAPI{}
	return NewClient(api, zerolog.Nop()), api
}

func TestSend_SplitsLongTextAndKeepsKeyboardOnLastPart(t *testing.T) {
	c, api := newTestClient()
	kb := messaging.InlineKeyboard(messaging.Row(messaging.Button{Text: "OK", Data: "ok"}))

	err := c.Send(context.Background(), messaging.Reply{ChatID: 7, Text: strings.Repeat("a", 5000), Keyboard: kb})
	require.NoError(t, err)
	require.Len(t, api.sent, 2)

	first := api.sent[0].(tgbotapi.MessageConfig)
	last := api.sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, MaxMessageLength, utf8.RuneCountInString(first.Text))
	assert.Nil(t, first.ReplyMarkup)
	assert.Len(t, last.Text, 5000-MaxMessageLength)

	markup, ok := last.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "ok", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestSplitText_PrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("x", 8) + "\n" + strings.Repeat("y", 5)
	parts := splitText(text, 10)
	assert.Equal(t, []string{strings.Repeat("x", 8), strings.Repeat("y", 5)}, parts)

	assert.Equal(t, []string{"short"}, splitText("short", 10))
}

func TestReplyMarkup_ReplyKeyboardWithContactButton(t *testing.T) {
	kb := &messaging.Keyboard{Rows: [][]messaging.Button{
		{{Text: "Share", RequestContact: true}},
		{{Text: "Back"}, {Text: "Cancel"}},
	}}

	markup, ok := replyMarkup(kb).(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.Keyboard, 2)
	assert.True(t, markup.Keyboard[0][0].RequestContact)
	assert.Equal(t, "Cancel", markup.Keyboard[1][1].Text)
	assert.True(t, markup.ResizeKeyboard)
}

func TestReplyMarkup_Remove(t *testing.T) {
	markup, ok := replyMarkup(&messaging.Keyboard{Remove: true}).(tgbotapi.ReplyKeyboardRemove)
	require.True(t, ok)
	assert.True(t, markup.RemoveKeyboard)
}

func TestSendMedia_TruncatesCaption(t *testing.T) {
	c, api := newTestClient()

	err := c.SendMedia(context.Background(), 7, models.MediaItem{Kind: models.MediaPhoto, FileID: "f1"}, strings.Repeat("ж", 2000))
	require.NoError(t, err)

	photo := api.sent[0].(tgbotapi.PhotoConfig)
	assert.Equal(t, config.MaxCaptionLength, utf8.RuneCountInString(photo.Caption))

	err = c.SendMedia(context.Background(), 7, models.MediaItem{Kind: models.MediaVideo, FileID: "v1"}, "cap")
	require.NoError(t, err)
	assert.Equal(t, "cap", api.sent[1].(tgbotapi.VideoConfig).Caption)
}

func TestSendMedia_UnknownKind(t *testing.T) {
	c, api := newTestClient()
	err := c.SendMedia(context.Background(), 7, models.MediaItem{Kind: "sticker", FileID: "s"}, "")
	assert.Error(t, err)
	assert.Empty(t, api.sent)
}

func TestSend_RetriesOnceWhenFloodLimited(t *testing.T) {
	c, api := newTestClient()
	api.sendErrs = []error{&tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1},
	}}

	require.NoError(t, messaging.SendText(context.Background(), c, 7, "hi"))
	assert.Len(t, api.sent, 2)
}

func TestSend_OtherErrorsAreNotRetried(t *testing.T) {
	c, api := newTestClient()
	api.sendErrs = []error{errors.New("Forbidden: bot was blocked by the user")}

	err := messaging.SendText(context.Background(), c, 7, "hi")
	assert.ErrorContains(t, err, "blocked")
	assert.Len(t, api.sent, 1)
}

func TestAnswerCallbackAndCheckChat(t *testing.T) {
	c, api := newTestClient()

	require.NoError(t, c.AnswerCallback(context.Background(), "", ""))
	assert.Empty(t, api.requests)

	require.NoError(t, c.AnswerCallback(context.Background(), "cb1", ""))
	require.NoError(t, c.CheckChat(context.Background(), -100))
	assert.Len(t, api.requests, 2)

	api.reqErr = errors.New("Forbidden: bot was kicked from the group chat")
	assert.ErrorContains(t, c.CheckChat(context.Background(), -100), "kicked")
}

func TestSendDocument(t *testing.T) {
	c, api := newTestClient()
	doc := messaging.Document{Name: "report.csv", Data: []byte("a,b\n"), Caption: "export"}

	require.NoError(t, c.SendDocument(context.Background(), 42, doc))
	sent := api.sent[0].(tgbotapi.DocumentConfig)
	assert.Equal(t, "export", sent.Caption)
}
