package complaint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/mocks"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/session"
	"qabulxona/backend/internal/wizard"
)

func TestRunDailyReminder(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListByStatus", models.StatusPending).Return([]models.Complaint{
		{ID: "c1", SubmitterID: userID},
		{ID: "c2", SubmitterID: stranger, Language: "ru"},
	}, nil)
	f.store.On("AppendAudit", mock.Anything, models.ActionReminder, mock.Anything).Return(nil)
	f.msgr.On("Send", mocks.TextTo(stranger)).Return(errors.New("bot was blocked by the user"))
	f.msgr.On("Send", mock.Anything).Return(nil)

	require.NoError(t, f.svc.RunDailyReminder(context.Background()))

	f.msgr.AssertCalled(t, "Send", mock.MatchedBy(func(r messaging.Reply) bool {
		return r.ChatID == userID && r.Text == "📬 Murojaat ID: c1 hali kutilyapti."
	}))
	f.store.AssertNumberOfCalls(t, "AppendAudit", 1)
}

func TestRunDailyReminderListFailure(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListByStatus", models.StatusPending).Return(nil, errors.New("db down"))
	assert.Error(t, f.svc.RunDailyReminder(context.Background()))
}

func TestRunWeeklyStats(t *testing.T) {
	f := newFixture(t)
	f.store.On("CountCreatedBetween", f.now.AddDate(0, 0, -7), f.now).Return(int64(12), nil)
	f.store.On("AppendAudit", int64(0), models.ActionWeeklyStats, mock.Anything).Return(nil)
	f.msgr.On("Send", mock.MatchedBy(func(r messaging.Reply) bool {
		return r.ChatID == adminID && strings.Contains(r.Text, "12")
	})).Return(nil).Once()

	require.NoError(t, f.svc.RunWeeklyStats(context.Background()))
	f.msgr.AssertExpectations(t)
}

func TestRunPeriodicExport(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListAll").Return([]models.Complaint{{ID: "c1", SubmitterID: userID, Status: models.StatusPending}}, nil)
	f.store.On("AppendAudit", int64(0), models.ActionAutoReport, mock.Anything).Return(nil)
	f.msgr.On("SendDocument", adminID, mock.MatchedBy(func(d messaging.Document) bool {
		return len(d.Data) > 0 && d.Caption != ""
	})).Return(nil).Once()

	require.NoError(t, f.svc.RunPeriodicExport(context.Background()))
	f.msgr.AssertExpectations(t)
}

func TestRunMembershipCheck(t *testing.T) {
	f := newFixture(t)
	f.msgr.On("CheckChat", groupID).Return(errors.New("Forbidden: bot was kicked")).Once()
	f.msgr.On("Send", mocks.TextTo(adminID)).Return(nil).Once()

	require.NoError(t, f.svc.RunMembershipCheck(context.Background()))
	f.msgr.AssertExpectations(t)
}

func TestRunGroupAnnouncementFailureAlertsAdmins(t *testing.T) {
	f := newFixture(t)
	f.msgr.On("Send", mocks.TextTo(groupID)).Return(errors.New("chat not found")).Once()
	f.msgr.On("Send", mocks.TextTo(adminID)).Return(nil).Once()

	require.NoError(t, f.svc.RunGroupAnnouncement(context.Background()))
	f.msgr.AssertExpectations(t)
	f.store.AssertNotCalled(t, "AppendAudit", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSessionSweep(t *testing.T) {
	f := newFixture(t)
	clock := f.now.Add(-time.Hour)
	f.sessions.WithClock(func() time.Time { return clock })
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepName})
	clock = f.now
	f.sessions.Set(session.Session{UserID: stranger, Step: wizard.StepName})

	require.NoError(t, f.svc.RunSessionSweep(context.Background()))

	_, stale := f.sessions.Get(userID)
	_, fresh := f.sessions.Get(stranger)
	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestGetComplaintDataset(t *testing.T) {
	f := newFixture(t)
	f.store.On("ListAll").Return([]models.Complaint{
		{ID: "c1", SubmitterID: userID, Status: models.StatusPending, CreatedAt: f.now.Add(-48 * time.Hour)},
	}, nil)

	rows, err := f.svc.GetComplaintDataset(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].ID)
}
