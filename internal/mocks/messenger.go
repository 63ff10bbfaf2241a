package mocks

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
)

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(_ context.Context, r messaging.Reply) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockMessenger) SendMedia(_ context.Context, chatID int64, item models.MediaItem, caption string) error {
	args := m.Called(chatID, item, caption)
	return args.Error(0)
}

func (m *MockMessenger) SendDocument(_ context.Context, chatID int64, doc messaging.Document) error {
	args := m.Called(chatID, doc)
	return args.Error(0)
}

func (m *MockMessenger) AnswerCallback(_ context.Context, callbackID, text string) error {
	args := m.Called(callbackID, text)
	return args.Error(0)
}

func (m *MockMessenger) CheckChat(_ context.Context, chatID int64) error {
	args := m.Called(chatID)
	return args.Error(0)
}

// TextTo matches a Reply sent to chatID, whatever its text and keyboard.
func TextTo(chatID int64) any {
	return mock.MatchedBy(func(r messaging.Reply) bool { return r.ChatID == chatID })
}

// TextContaining matches a Reply to chatID whose text contains substr.
func TextContaining(chatID int64, substr string) any {
	return mock.MatchedBy(func(r messaging.Reply) bool {
		return r.ChatID == chatID && strings.Contains(r.Text, substr)
	})
}
