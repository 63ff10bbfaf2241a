package complaint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qabulxona/backend/internal/admin"
	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/dispatch"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/mocks"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/moderation"
	"qabulxona/backend/internal/report"
	"qabulxona/backend/internal/session"
	"qabulxona/backend/internal/storage"
	"qabulxona/backend/internal/views"
	"qabulxona/backend/internal/wizard"
)

const (
	adminID  int64 = 42
	groupID  int64 = -100500
	userID   int64 = 1001
	stranger int64 = 2002
)

// countingLimiter records how often it was consulted.
type countingLimiter struct {
	calls int
	deny  bool
}

func (l *countingLimiter) Allow(context.Context, int64) bool {
	l.calls++
	return !l.deny
}

type fixedIDs struct{ ids []string }

func (f *fixedIDs) NewID(int64, time.Time) string {
	id := f.ids[0]
	if len(f.ids) > 1 {
		f.ids = f.ids[1:]
	}
	return id
}

type fixture struct {
	svc      *Service
	store    *mocks.MockStorage
	msgr     *mocks.MockMessenger
	sessions *session.MemoryStore
	limiter  *countingLimiter
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := localization.NewDefaultLocalizer("uz")
	require.NoError(t, err)
	tz := time.FixedZone("UZT", 5*3600)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, tz)

	store := new(mocks.MockStorage)
	msgr := new(mocks.MockMessenger)
	sessions := session.NewMemoryStore().WithClock(func() time.Time { return now })
	limiter := &countingLimiter{}
	renderer := views.NewRenderer(loc, config.Sections, tz)
	disp := dispatch.New(msgr, []int64{adminID}, groupID, zerolog.Nop())
	exporter := report.NewCSVExporter(tz)

	router := admin.NewRouter(admin.Deps{
		Admins:          []int64{adminID},
		Storage:         store,
		Dispatcher:      disp,
		Views:           renderer,
		Exporter:        exporter,
		Languages:       sessions,
		DefaultLanguage: "uz",
	}, zerolog.Nop())

	svc := NewService(Deps{
		Storage:    store,
		Sessions:   sessions,
		Machine:    wizard.NewMachine(false, config.Sections),
		Limiter:    limiter,
		Filter:     moderation.NewFilter([]string{"ahmoq"}),
		Dispatcher: disp,
		Messenger:  msgr,
		Views:      renderer,
		Admin:      router,
		IDs:        &fixedIDs{ids: []string{"1001_1"}},
		Exporter:   exporter,
	}, Options{DefaultLanguage: "uz", SessionIdleTimeout: 30 * time.Minute}, zerolog.Nop())
	svc.WithClock(func() time.Time { return now })

	return &fixture{svc: svc, store: store, msgr: msgr, sessions: sessions, limiter: limiter, now: now}
}

func (f *fixture) allowAll() {
	f.store.On("IsBlocked", mock.Anything).Return(false, nil)
	f.store.On("AppendAudit", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.msgr.On("Send", mock.Anything).Return(nil)
	f.msgr.On("SendMedia", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.msgr.On("AnswerCallback", mock.Anything, mock.Anything).Return(nil)
}

func text(from int64, body string) messaging.Event {
	return messaging.Event{Kind: messaging.EventText, UserID: from, ChatID: from, Private: true, Handle: "ali", Text: body}
}

func button(from int64, data string) messaging.Event {
	return messaging.Event{Kind: messaging.EventCallback, UserID: from, ChatID: from, Private: true, Handle: "ali", Text: data, CallbackID: "cb"}
}

func (f *fixture) handle(t *testing.T, ev messaging.Event) {
	t.Helper()
	require.NoError(t, f.svc.HandleInboundEvent(context.Background(), ev))
}

func (f *fixture) current(t *testing.T) session.Session {
	t.Helper()
	sess, ok := f.sessions.Get(userID)
	require.True(t, ok, "session expected")
	return sess
}

func filledDraft() wizard.Draft {
	return wizard.Draft{
		FullName: "Ali Valiev",
		Handle:   "ali",
		Address:  "Toshkent, Chilonzor 5",
		Phone:    "+998901234567",
		Section:  config.Sections[0].Tag,
		Summary:  "Ko'chada yo'l buzilgan",
		Media:    []models.MediaItem{{Kind: models.MediaPhoto, FileID: "photo-1"}},
	}
}

func TestHappyPathSubmitsAndDelivers(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	var stored *models.Complaint
	f.store.On("InsertComplaint", mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(0).(*models.Complaint)
	}).Return(nil).Once()

	f.handle(t, text(userID, "/start"))
	assert.Equal(t, wizard.StepName, f.current(t).Step)

	f.handle(t, text(userID, "Ali"))
	assert.Equal(t, wizard.StepName, f.current(t).Step)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "3 harfdan"))

	f.handle(t, text(userID, "Ali Valiev"))
	assert.Equal(t, wizard.StepAddress, f.current(t).Step)

	f.handle(t, text(userID, "Toshkent, Chilonzor 5"))
	assert.Equal(t, wizard.StepPhone, f.current(t).Step)

	f.handle(t, text(userID, "998901234567"))
	assert.Equal(t, wizard.StepPhone, f.current(t).Step)
	f.handle(t, text(userID, "+998901234567"))
	assert.Equal(t, wizard.StepSection, f.current(t).Step)

	f.handle(t, text(userID, "Boshqa narsa"))
	assert.Equal(t, wizard.StepSection, f.current(t).Step)
	f.handle(t, button(userID, wizard.SectionButton(0)))
	assert.Equal(t, wizard.StepSummary, f.current(t).Step)

	f.handle(t, text(userID, "Ko'chada yo'l buzilgan"))
	assert.Equal(t, wizard.StepMedia, f.current(t).Step)

	f.handle(t, messaging.Event{Kind: messaging.EventMedia, UserID: userID, ChatID: userID, Private: true,
		Media: models.MediaItem{Kind: models.MediaPhoto, FileID: "photo-1"}})
	assert.Len(t, f.current(t).Draft.Media, 1)

	f.handle(t, text(userID, "✅ Tayyor"))
	assert.Equal(t, wizard.StepConfirm, f.current(t).Step)

	f.handle(t, button(userID, wizard.ButtonSubmit))

	require.NotNil(t, stored)
	assert.Equal(t, "1001_1", stored.ID)
	assert.Equal(t, "Ali Valiev", stored.FullName)
	assert.Equal(t, "+998901234567", stored.Phone)
	assert.Equal(t, config.Sections[0].Tag, stored.Section)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, "ali", stored.SubmitterHandle)

	_, open := f.sessions.Get(userID)
	assert.False(t, open)

	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(adminID, "1001_1"))
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(groupID, "1001_1"))
	f.msgr.AssertCalled(t, "SendMedia", adminID, models.MediaItem{Kind: models.MediaPhoto, FileID: "photo-1"}, mock.Anything)
	f.msgr.AssertCalled(t, "SendMedia", groupID, models.MediaItem{Kind: models.MediaPhoto, FileID: "photo-1"}, mock.Anything)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "1001_1"))
}

func TestBackButtonReturnsToPreviousStep(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepPhone, Draft: filledDraft(), Language: "uz"})

	f.handle(t, text(userID, "⬅️ Orqaga"))
	sess := f.current(t)
	assert.Equal(t, wizard.StepAddress, sess.Step)
	assert.Equal(t, "Toshkent, Chilonzor 5", sess.Draft.Address)
}

func TestBlockedUserRefusedBeforeRateLimit(t *testing.T) {
	f := newFixture(t)
	f.store.On("IsBlocked", userID).Return(true, nil)
	f.msgr.On("Send", mocks.TextTo(userID)).Return(nil).Once()

	f.handle(t, text(userID, "/start"))

	assert.Zero(t, f.limiter.calls)
	_, open := f.sessions.Get(userID)
	assert.False(t, open)
	f.msgr.AssertExpectations(t)
}

func TestRateLimitedEventIsDropped(t *testing.T) {
	f := newFixture(t)
	f.limiter.deny = true
	f.store.On("IsBlocked", userID).Return(false, nil)
	f.msgr.On("Send", mocks.TextTo(userID)).Return(nil).Once()

	f.handle(t, text(userID, "/start"))

	assert.Equal(t, 1, f.limiter.calls)
	_, open := f.sessions.Get(userID)
	assert.False(t, open)
	f.msgr.AssertExpectations(t)
}

func TestModerationBlocksStepAndAlertsAdmins(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepName, Language: "uz"})

	f.handle(t, text(userID, "Sen AHMOQsan"))

	sess := f.current(t)
	assert.Equal(t, wizard.StepName, sess.Step)
	assert.Empty(t, sess.Draft.FullName)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(adminID, "AHMOQsan"))
	f.store.AssertCalled(t, "AppendAudit", userID, models.ActionOffensive, mock.Anything)
}

func TestInsertFailureKeepsDraftAndSkipsDelivery(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.store.On("InsertComplaint", mock.Anything).Return(errors.New("connection refused"))
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepConfirm, Draft: filledDraft(), Language: "uz"})

	f.handle(t, button(userID, wizard.ButtonSubmit))

	sess := f.current(t)
	assert.Equal(t, wizard.StepConfirm, sess.Step)
	assert.Equal(t, filledDraft().Summary, sess.Draft.Summary)
	f.msgr.AssertNotCalled(t, "Send", mocks.TextTo(adminID))
	f.msgr.AssertNotCalled(t, "Send", mocks.TextTo(groupID))
	f.msgr.AssertNotCalled(t, "SendMedia", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertCalled(t, "AppendAudit", userID, models.ActionSubmitFailed, mock.Anything)
}

func TestDuplicateIDIsRetried(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.svc.ids = &fixedIDs{ids: []string{"111111", "222222"}}
	f.store.On("InsertComplaint", mock.MatchedBy(func(c *models.Complaint) bool { return c.ID == "111111" })).
		Return(storage.ErrDuplicateID).Once()
	f.store.On("InsertComplaint", mock.MatchedBy(func(c *models.Complaint) bool { return c.ID == "222222" })).
		Return(nil).Once()
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepConfirm, Draft: filledDraft(), Language: "uz"})

	f.handle(t, button(userID, wizard.ButtonSubmit))

	f.store.AssertNumberOfCalls(t, "InsertComplaint", 2)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "222222"))
}

func TestPartialDeliveryIsReported(t *testing.T) {
	f := newFixture(t)
	f.store.On("IsBlocked", mock.Anything).Return(false, nil)
	f.store.On("AppendAudit", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("InsertComplaint", mock.Anything).Return(nil)
	f.msgr.On("AnswerCallback", mock.Anything, mock.Anything).Return(nil)
	f.msgr.On("Send", mocks.TextTo(groupID)).Return(errors.New("chat not found"))
	f.msgr.On("SendMedia", groupID, mock.Anything, mock.Anything).Return(errors.New("chat not found"))
	f.msgr.On("Send", mock.Anything).Return(nil)
	f.msgr.On("SendMedia", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepConfirm, Draft: filledDraft(), Language: "uz"})

	f.handle(t, button(userID, wizard.ButtonSubmit))

	f.msgr.AssertCalled(t, "SendMedia", adminID, mock.Anything, mock.Anything)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "-100500"))
}

func TestEditOwnedComplaint(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.store.On("GetComplaint", "c1").Return(&models.Complaint{ID: "c1", SubmitterID: userID, Summary: "eski matn"}, nil)
	f.store.On("UpdateSummary", "c1", "Yangi batafsil matn").Return(nil).Once()

	f.handle(t, text(userID, "/edit c1"))
	sess := f.current(t)
	assert.Equal(t, wizard.StepEditSummary, sess.Step)
	assert.Equal(t, "c1", sess.EditComplaintID)

	f.handle(t, text(userID, "abc"))
	f.handle(t, text(userID, "Yangi batafsil matn"))

	_, open := f.sessions.Get(userID)
	assert.False(t, open)
	f.store.AssertExpectations(t)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(adminID, "Yangi batafsil matn"))
}

func TestEditForeignComplaintLooksMissing(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.store.On("GetComplaint", "c1").Return(&models.Complaint{ID: "c1", SubmitterID: stranger}, nil)

	f.handle(t, text(userID, "/edit c1"))

	_, open := f.sessions.Get(userID)
	assert.False(t, open)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "topilmadi"))
}

func TestEditRefusedWhileWizardOpen(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.store.On("GetComplaint", "c1").Return(&models.Complaint{ID: "c1", SubmitterID: userID, Summary: "eski matn"}, nil)
	draft := wizard.Draft{FullName: "Ali Valiev", Address: "Toshkent"}
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepPhone, Draft: draft, Language: "uz"})

	f.handle(t, text(userID, "/edit c1"))

	sess := f.current(t)
	assert.Equal(t, wizard.StepPhone, sess.Step)
	assert.Equal(t, draft, sess.Draft)
	assert.Empty(t, sess.EditComplaintID)
	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "yakunlanmagan murojaat"))
}

func TestCancelDropsPendingBroadcast(t *testing.T) {
	f := newFixture(t)
	f.allowAll()

	f.handle(t, text(adminID, "/broadcast"))
	f.handle(t, text(adminID, "/cancel"))
	f.handle(t, text(adminID, "Ertaga qabul yo'q"))

	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(adminID, "Broadcast bekor qilindi"))
	f.msgr.AssertNotCalled(t, "Send", mocks.TextContaining(adminID, "Ertaga qabul yo'q"))
	f.store.AssertNotCalled(t, "ListSubmitterIDs")
}

func TestCommandsNeverFeedTheWizard(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepName, Language: "uz"})

	f.handle(t, text(userID, "/unknown Ali Valiev"))

	sess := f.current(t)
	assert.Equal(t, wizard.StepName, sess.Step)
	assert.Empty(t, sess.Draft.FullName)
}

func TestNonAdminCommandRefused(t *testing.T) {
	f := newFixture(t)
	f.allowAll()

	f.handle(t, text(userID, "/status c1 Resolved"))

	f.msgr.AssertCalled(t, "Send", mocks.TextContaining(userID, "Faqat admin"))
	f.store.AssertCalled(t, "AppendAudit", userID, models.ActionPermissionDenied, "status")
	f.store.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestGroupEventsIgnored(t *testing.T) {
	f := newFixture(t)
	ev := text(userID, "/start")
	ev.Private = false

	f.handle(t, ev)

	f.store.AssertNotCalled(t, "IsBlocked", mock.Anything)
	f.msgr.AssertNotCalled(t, "Send", mock.Anything)
}

func TestCallbackWithoutSessionIsNoop(t *testing.T) {
	f := newFixture(t)
	f.allowAll()

	f.handle(t, button(userID, wizard.ButtonSubmit))

	f.store.AssertNotCalled(t, "InsertComplaint", mock.Anything)
	f.msgr.AssertNotCalled(t, "Send", mock.Anything)
	f.msgr.AssertCalled(t, "AnswerCallback", "cb", "")
}

func TestLanguageSwitch(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.sessions.Set(session.Session{UserID: userID, Step: wizard.StepName, Language: "uz"})

	f.handle(t, button(userID, views.LanguagePrefix+"ru"))
	assert.Equal(t, "ru", f.sessions.Language(userID))
	assert.Equal(t, "ru", f.current(t).Language)

	f.handle(t, button(userID, views.LanguagePrefix+"xx"))
	assert.Equal(t, "ru", f.sessions.Language(userID))
}

func TestAdminStartOpensDashboard(t *testing.T) {
	f := newFixture(t)
	f.allowAll()
	f.store.On("ListAll").Return([]models.Complaint{}, nil)

	f.handle(t, text(adminID, "/start"))

	_, open := f.sessions.Get(adminID)
	assert.False(t, open)
	f.msgr.AssertCalled(t, "Send", mock.MatchedBy(func(r messaging.Reply) bool {
		return r.ChatID == adminID && r.Keyboard != nil && r.Keyboard.Inline
	}))
}

func TestNewIDGenerator(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	gen, err := NewIDGenerator(config.IDSchemeComposite)
	require.NoError(t, err)
	assert.Equal(t, "1001_1700000000123", gen.NewID(userID, now))

	gen, err = NewIDGenerator(config.IDSchemeNumeric)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, gen.NewID(userID, now))

	gen, err = NewIDGenerator(config.IDSchemeUUID)
	require.NoError(t, err)
	assert.Len(t, gen.NewID(userID, now), 36)

	_, err = NewIDGenerator("sequential")
	assert.Error(t, err)
}
