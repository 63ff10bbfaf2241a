// Package complaint drives the citizen side of the bot: the intake wizard,
// submission and the maintenance jobs the scheduler triggers.
package complaint

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"qabulxona/backend/internal/dispatch"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/metrics"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/moderation"
	"qabulxona/backend/internal/ratelimit"
	"qabulxona/backend/internal/report"
	"qabulxona/backend/internal/session"
	"qabulxona/backend/internal/storage"
	"qabulxona/backend/internal/views"
	"qabulxona/backend/internal/wizard"
)

// AdminRouter is the privileged side of the bot.
type AdminRouter interface {
	IsAdmin(userID int64) bool
	Handles(command string) bool
	HandleAdminCommand(ctx context.Context, actorID int64, command, args string) error
	HandleCallback(ctx context.Context, actorID int64, data string) error
	CaptureBroadcast(ctx context.Context, actorID int64, text string) bool
	CancelBroadcast(actorID int64) bool
}

// FeedPublisher receives complaint lifecycle events.
type FeedPublisher interface {
	Publish(ev models.FeedEvent)
}

// Options are the deployment switches of the service.
type Options struct {
	DefaultLanguage string
	// AnnouncementText overrides the localized group announcement.
	AnnouncementText string
	// SessionIdleTimeout of zero disables the session sweep.
	SessionIdleTimeout time.Duration
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Storage    storage.Storage
	Sessions   session.Store
	Machine    *wizard.Machine
	Limiter    ratelimit.Limiter
	Filter     *moderation.Filter
	Dispatcher *dispatch.Dispatcher
	Messenger  messaging.Messenger
	Views      *views.Renderer
	Admin      AdminRouter
	IDs        IDGenerator
	Feed       FeedPublisher
	Exporter   *report.CSVExporter
}

// Service handles every inbound event from citizens and admins.
type Service struct {
	store      storage.Storage
	sessions   session.Store
	machine    *wizard.Machine
	limiter    ratelimit.Limiter
	filter     *moderation.Filter
	dispatcher *dispatch.Dispatcher
	messenger  messaging.Messenger
	views      *views.Renderer
	admin      AdminRouter
	ids        IDGenerator
	feed       FeedPublisher
	exporter   *report.CSVExporter
	opts       Options
	now        func() time.Time
	log        zerolog.Logger
}

// NewService creates a new complaint service.
func NewService(d Deps, opts Options, log zerolog.Logger) *Service {
	if d.IDs == nil {
		d.IDs = CompositeIDs{}
	}
	return &Service{
		store:      d.Storage,
		sessions:   d.Sessions,
		machine:    d.Machine,
		limiter:    d.Limiter,
		filter:     d.Filter,
		dispatcher: d.Dispatcher,
		messenger:  d.Messenger,
		views:      d.Views,
		admin:      d.Admin,
		ids:        d.IDs,
		feed:       d.Feed,
		exporter:   d.Exporter,
		opts:       opts,
		now:        time.Now,
		log:        log.With().Str("component", "complaint").Logger(),
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// HandleInboundEvent runs one event through the gates and then through the
// command, callback or wizard path. Failures are reported to the user and
// logged rather than returned.
func (s *Service) HandleInboundEvent(ctx context.Context, ev messaging.Event) error {
	kind := eventKind(ev.Kind)
	if !ev.Private {
		metrics.RecordInbound(kind, "group")
		return nil
	}

	if s.isBlocked(ctx, ev.UserID) {
		metrics.RecordInbound(kind, "blocked")
		s.ack(ctx, ev)
		s.replyKey(ctx, ev.ChatID, s.language(ev.UserID), "blockedUser", nil)
		return nil
	}

	if !s.limiter.Allow(ctx, ev.UserID) {
		metrics.RecordInbound(kind, "rate_limited")
		s.ack(ctx, ev)
		s.replyKey(ctx, ev.ChatID, s.language(ev.UserID), "rateLimit", nil)
		return nil
	}
	s.ack(ctx, ev)

	if ev.Kind == messaging.EventText && !ev.IsCommand() {
		if word, hit := s.filter.Match(ev.Text); hit {
			metrics.RecordInbound(kind, "moderated")
			s.moderated(ctx, ev, word)
			return nil
		}
	}

	metrics.RecordInbound(kind, "accepted")

	if ev.IsCommand() {
		name, args := ev.Command()
		s.handleCommand(ctx, ev, name, args)
		return nil
	}

	if ev.Kind == messaging.EventCallback {
		switch {
		case strings.HasPrefix(ev.Text, views.LanguagePrefix):
			s.setLanguage(ctx, ev, strings.TrimPrefix(ev.Text, views.LanguagePrefix))
			return nil
		case strings.HasPrefix(ev.Text, views.AdminPrefix):
			if err := s.admin.HandleCallback(ctx, ev.UserID, ev.Text); err != nil {
				s.log.Warn().Err(err).Int64("user_id", ev.UserID).Str("data", ev.Text).Msg("admin callback failed")
			}
			return nil
		}
	}

	if ev.Kind == messaging.EventText && s.admin.CaptureBroadcast(ctx, ev.UserID, ev.Text) {
		return nil
	}

	sess, ok := s.sessions.Get(ev.UserID)
	if !ok {
		// A first plain message from a citizen opens the wizard.
		if ev.Kind == messaging.EventText && !s.admin.IsAdmin(ev.UserID) {
			s.startWizard(ctx, ev)
		}
		return nil
	}
	s.step(ctx, ev, sess)
	return nil
}

func (s *Service) step(ctx context.Context, ev messaging.Event, sess session.Session) {
	res := s.machine.Next(sess.Step, sess.Draft, s.input(ev))
	log := s.log.With().
		Int64("user_id", ev.UserID).
		Str("step", sess.Step.String()).
		Str("effect", res.Effect.String()).
		Logger()

	switch res.Effect {
	case wizard.EffectIgnore:
		log.Debug().Msg("input ignored")

	case wizard.EffectReject:
		metrics.WizardRejectionsTotal.WithLabelValues(sess.Step.String()).Inc()
		s.sessions.Set(sess)
		s.send(ctx, messaging.Reply{
			ChatID:   ev.ChatID,
			Text:     s.views.Text(sess.Language, res.ErrorKey, nil),
			Keyboard: s.views.StepKeyboard(sess.Language, sess.Step),
		})

	case wizard.EffectMediaAccepted:
		sess.Draft = res.Draft
		s.sessions.Set(sess)
		s.replyKey(ctx, ev.ChatID, sess.Language, "mediaReceived", nil)

	case wizard.EffectPrompt:
		sess.Step, sess.Draft = res.Next, res.Draft
		s.sessions.Set(sess)
		s.prompt(ctx, ev.ChatID, sess)

	case wizard.EffectCancel:
		s.endSession(ev.UserID)
		s.send(ctx, messaging.Reply{
			ChatID:   ev.ChatID,
			Text:     s.views.Text(sess.Language, "cancelled", nil),
			Keyboard: views.RemoveKeyboard(),
		})
		log.Info().Msg("wizard cancelled")

	case wizard.EffectSubmit:
		if ev.Handle != "" {
			res.Draft.Handle = ev.Handle
		}
		s.submit(ctx, ev.ChatID, sess, res.Draft)

	case wizard.EffectSummaryEdited:
		s.finishEdit(ctx, ev.ChatID, sess, res.Draft.Summary)
	}
}

// input maps a transport event onto the wizard vocabulary. Reply keyboard
// labels come back as plain text and are turned into their button payloads.
func (s *Service) input(ev messaging.Event) wizard.Input {
	in := wizard.Input{Handle: ev.Handle, Text: ev.Text}
	switch ev.Kind {
	case messaging.EventText:
		in.Kind = wizard.InputText
		if data, ok := s.views.ButtonData(ev.Text); ok {
			in.Kind, in.Text = wizard.InputButton, data
		}
	case messaging.EventContact:
		in.Kind = wizard.InputContact
	case messaging.EventMedia:
		in.Kind = wizard.InputMedia
		in.Media = ev.Media
	case messaging.EventCallback:
		in.Kind = wizard.InputButton
	default:
		// Stickers, voice notes and the like fail every text predicate.
		in.Kind, in.Text = wizard.InputText, ""
	}
	return in
}

func (s *Service) startWizard(ctx context.Context, ev messaging.Event) {
	sess := session.Session{
		UserID:   ev.UserID,
		Step:     s.machine.First(),
		Draft:    wizard.Draft{Handle: ev.Handle},
		Language: s.language(ev.UserID),
	}
	s.sessions.Set(sess)
	metrics.ActiveSessions.Set(float64(s.sessions.Count()))
	s.prompt(ctx, ev.ChatID, sess)
	s.audit(ctx, ev.UserID, models.ActionStart, "User started complaint process")
	s.log.Info().Int64("user_id", ev.UserID).Msg("wizard started")
}

func (s *Service) prompt(ctx context.Context, chatID int64, sess session.Session) {
	text, kb := s.views.Prompt(sess.Language, sess.Step, sess.Draft)
	s.send(ctx, messaging.Reply{ChatID: chatID, Text: text, Keyboard: kb})
}

func (s *Service) endSession(userID int64) {
	s.sessions.Delete(userID)
	metrics.ActiveSessions.Set(float64(s.sessions.Count()))
}

func (s *Service) moderated(ctx context.Context, ev messaging.Event, word string) {
	s.replyKey(ctx, ev.ChatID, s.language(ev.UserID), "offensiveWarning", nil)

	handle := ev.Handle
	if handle == "" {
		handle = s.views.Text(s.opts.DefaultLanguage, "unknownHandle", nil)
	}
	alert := s.views.Text(s.opts.DefaultLanguage, "offensiveAlert", localization.Fields{
		"handle":  handle,
		"user_id": ev.UserID,
		"text":    ev.Text,
	})
	if failed := s.dispatcher.NotifyAdmins(ctx, alert); len(failed) > 0 {
		s.log.Warn().Int("failed", len(failed)).Msg("moderation alert not delivered to every admin")
	}
	s.audit(ctx, ev.UserID, models.ActionOffensive, "Matched "+word)
	s.log.Info().Int64("user_id", ev.UserID).Str("word", word).Msg("offensive message refused")
}

func (s *Service) isBlocked(ctx context.Context, userID int64) bool {
	blocked, err := s.store.IsBlocked(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("blocked lookup failed, letting event through")
		return false
	}
	return blocked
}

func (s *Service) ack(ctx context.Context, ev messaging.Event) {
	if ev.Kind != messaging.EventCallback || ev.CallbackID == "" {
		return
	}
	if err := s.messenger.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
		s.log.Debug().Err(err).Msg("failed to answer callback")
	}
}

// language is the user's chosen locale, else the default one.
func (s *Service) language(userID int64) string {
	if lang := s.sessions.Language(userID); lang != "" {
		return lang
	}
	return s.opts.DefaultLanguage
}

func (s *Service) replyKey(ctx context.Context, chatID int64, lang, key string, fields localization.Fields) {
	s.send(ctx, messaging.Reply{ChatID: chatID, Text: s.views.Text(lang, key, fields)})
}

func (s *Service) send(ctx context.Context, r messaging.Reply) {
	if err := s.dispatcher.SendTo(ctx, r); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", r.ChatID).Msg("failed to send reply")
	}
}

func (s *Service) audit(ctx context.Context, actorID int64, action, details string) {
	if err := s.store.AppendAudit(ctx, actorID, action, details); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}

func (s *Service) publish(ev models.FeedEvent) {
	if s.feed == nil {
		return
	}
	ev.At = s.now()
	s.feed.Publish(ev)
}

func eventKind(k messaging.EventKind) string {
	switch k {
	case messaging.EventText:
		return "text"
	case messaging.EventMedia:
		return "media"
	case messaging.EventContact:
		return "contact"
	case messaging.EventCallback:
		return "callback"
	}
	return "other"
}
