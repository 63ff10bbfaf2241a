// Package mocks holds testify mocks of the repository and the messenger.
// Context arguments are not recorded, so expectations list only the domain
// arguments.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"qabulxona/backend/internal/models"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) InsertComplaint(_ context.Context, c *models.Complaint) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockStorage) GetComplaint(_ context.Context, id string) (*models.Complaint, error) {
	args := m.Called(id)
	c, _ := args.Get(0).(*models.Complaint)
	return c, args.Error(1)
}

func (m *MockStorage) UpdateStatus(_ context.Context, id string, status models.Status) error {
	args := m.Called(id, status)
	return args.Error(0)
}

func (m *MockStorage) UpdateAssignee(_ context.Context, id, assignee string) error {
	args := m.Called(id, assignee)
	return args.Error(0)
}

func (m *MockStorage) UpdateSummary(_ context.Context, id, summary string) error {
	args := m.Called(id, summary)
	return args.Error(0)
}

func (m *MockStorage) DeleteComplaint(_ context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStorage) ListByUser(_ context.Context, userID int64) ([]models.Complaint, error) {
	args := m.Called(userID)
	out, _ := args.Get(0).([]models.Complaint)
	return out, args.Error(1)
}

func (m *MockStorage) ListBySection(_ context.Context, section string) ([]models.Complaint, error) {
	args := m.Called(section)
	out, _ := args.Get(0).([]models.Complaint)
	return out, args.Error(1)
}

func (m *MockStorage) ListByStatus(_ context.Context, status models.Status) ([]models.Complaint, error) {
	args := m.Called(status)
	out, _ := args.Get(0).([]models.Complaint)
	return out, args.Error(1)
}

func (m *MockStorage) ListAll(_ context.Context) ([]models.Complaint, error) {
	args := m.Called()
	out, _ := args.Get(0).([]models.Complaint)
	return out, args.Error(1)
}

func (m *MockStorage) ListSubmitterIDs(_ context.Context) ([]int64, error) {
	args := m.Called()
	out, _ := args.Get(0).([]int64)
	return out, args.Error(1)
}

func (m *MockStorage) CountCreatedBetween(_ context.Context, from, to time.Time) (int64, error) {
	args := m.Called(from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) AddComment(_ context.Context, complaintID, text string, adminID int64) error {
	args := m.Called(complaintID, text, adminID)
	return args.Error(0)
}

func (m *MockStorage) ListComments(_ context.Context, complaintID string) ([]models.Comment, error) {
	args := m.Called(complaintID)
	out, _ := args.Get(0).([]models.Comment)
	return out, args.Error(1)
}

func (m *MockStorage) SetBlocked(_ context.Context, userID int64, reason string) error {
	args := m.Called(userID, reason)
	return args.Error(0)
}

func (m *MockStorage) Unblock(_ context.Context, userID int64) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) IsBlocked(_ context.Context, userID int64) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) AppendAudit(_ context.Context, actorID int64, action, details string) error {
	args := m.Called(actorID, action, details)
	return args.Error(0)
}

func (m *MockStorage) ListAudit(_ context.Context, limit int) ([]models.AuditEntry, error) {
	args := m.Called(limit)
	out, _ := args.Get(0).([]models.AuditEntry)
	return out, args.Error(1)
}
