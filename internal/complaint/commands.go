package complaint

import (
	"context"
	"errors"

	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/session"
	"qabulxona/backend/internal/storage"
	"qabulxona/backend/internal/views"
	"qabulxona/backend/internal/wizard"
)

func (s *Service) handleCommand(ctx context.Context, ev messaging.Event, name, args string) {
	switch name {
	case "start":
		s.start(ctx, ev)
	case "mycomplaints":
		s.myComplaints(ctx, ev)
	case "edit":
		s.startEdit(ctx, ev, args)
	case "language":
		s.send(ctx, messaging.Reply{
			ChatID:   ev.ChatID,
			Text:     s.views.Text(s.language(ev.UserID), "chooseLanguage", nil),
			Keyboard: s.views.LanguageKeyboard(),
		})
	case "help":
		s.replyKey(ctx, ev.ChatID, s.language(ev.UserID), "help", nil)
		s.audit(ctx, ev.UserID, models.ActionViewHelp, "Viewed help")
	case "cancel":
		s.cancel(ctx, ev)
	default:
		if !s.admin.Handles(name) {
			s.log.Debug().Int64("user_id", ev.UserID).Str("command", name).Msg("unknown command")
			return
		}
		if err := s.admin.HandleAdminCommand(ctx, ev.UserID, name, args); err != nil {
			s.log.Debug().Err(err).Int64("user_id", ev.UserID).Str("command", name).Msg("admin command not completed")
		}
	}
}

// start opens a fresh wizard, discarding any open one. Admins land on the
// dashboard instead.
func (s *Service) start(ctx context.Context, ev messaging.Event) {
	if s.admin.IsAdmin(ev.UserID) {
		if err := s.admin.HandleAdminCommand(ctx, ev.UserID, "dashboard", ""); err != nil {
			s.log.Warn().Err(err).Int64("user_id", ev.UserID).Msg("dashboard failed")
		}
		return
	}
	s.startWizard(ctx, ev)
}

// cancel drops a pending admin broadcast as well as an open wizard.
func (s *Service) cancel(ctx context.Context, ev messaging.Event) {
	lang := s.language(ev.UserID)
	_, open := s.sessions.Get(ev.UserID)
	if s.admin.CancelBroadcast(ev.UserID) {
		s.replyKey(ctx, ev.ChatID, lang, "broadcastCancelled", nil)
		if !open {
			return
		}
	}
	if open {
		s.endSession(ev.UserID)
	}
	s.send(ctx, messaging.Reply{ChatID: ev.ChatID, Text: s.views.Text(lang, "cancelled", nil), Keyboard: views.RemoveKeyboard()})
}

func (s *Service) myComplaints(ctx context.Context, ev messaging.Event) {
	lang := s.language(ev.UserID)
	list, err := s.store.ListByUser(ctx, ev.UserID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", ev.UserID).Msg("failed to list user complaints")
		s.replyKey(ctx, ev.ChatID, lang, "operationFailed", nil)
		return
	}
	if len(list) == 0 {
		s.replyKey(ctx, ev.ChatID, lang, "noUserComplaints", nil)
		return
	}
	s.send(ctx, messaging.Reply{ChatID: ev.ChatID, Text: s.views.UserList(lang, list)})
	s.audit(ctx, ev.UserID, models.ActionViewComplaints, "Viewed own complaints")
}

// startEdit opens the single-step summary edit of an owned complaint.
func (s *Service) startEdit(ctx context.Context, ev messaging.Event, args string) {
	lang := s.language(ev.UserID)
	id := firstField(args)
	if id == "" {
		s.replyKey(ctx, ev.ChatID, lang, "editUsage", nil)
		return
	}

	c, err := s.store.GetComplaint(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.replyKey(ctx, ev.ChatID, lang, "notFound", nil)
		return
	case err != nil:
		s.log.Error().Err(err).Str("complaint_id", id).Msg("failed to load complaint for edit")
		s.replyKey(ctx, ev.ChatID, lang, "operationFailed", nil)
		return
	case c.SubmitterID != ev.UserID:
		// Someone else's complaint looks exactly like a missing one.
		s.replyKey(ctx, ev.ChatID, lang, "notFound", nil)
		return
	}

	if open, ok := s.sessions.Get(ev.UserID); ok && open.Step != wizard.StepEditSummary {
		s.replyKey(ctx, ev.ChatID, lang, "editWizardOpen", nil)
		return
	}

	sess := session.Session{
		UserID:          ev.UserID,
		Step:            wizard.StepEditSummary,
		Draft:           wizard.Draft{Summary: c.Summary},
		Language:        lang,
		EditComplaintID: c.ID,
	}
	s.sessions.Set(sess)
	s.prompt(ctx, ev.ChatID, sess)
}

func (s *Service) finishEdit(ctx context.Context, chatID int64, sess session.Session, summary string) {
	id := sess.EditComplaintID
	if err := s.store.UpdateSummary(ctx, id, summary); err != nil {
		key := "operationFailed"
		if errors.Is(err, storage.ErrNotFound) {
			key = "notFound"
			s.endSession(sess.UserID)
		}
		s.log.Error().Err(err).Str("complaint_id", id).Msg("failed to update summary")
		s.replyKey(ctx, chatID, sess.Language, key, nil)
		return
	}
	s.endSession(sess.UserID)

	s.send(ctx, messaging.Reply{
		ChatID:   chatID,
		Text:     s.views.Text(sess.Language, "editSuccess", localization.Fields{"id": id}),
		Keyboard: views.RemoveKeyboard(),
	})
	notice := s.views.Text(s.opts.DefaultLanguage, "editNotify", localization.Fields{"id": id, "text": summary})
	if failed := s.dispatcher.NotifyAdmins(ctx, notice); len(failed) > 0 {
		s.log.Warn().Int("failed", len(failed)).Str("complaint_id", id).Msg("edit notice not delivered to every admin")
	}
	s.audit(ctx, sess.UserID, models.ActionEdit, "Edited complaint "+id)
	s.publish(models.FeedEvent{Type: "summary_edited", ComplaintID: id, Summary: summary})
	s.log.Info().Int64("user_id", sess.UserID).Str("complaint_id", id).Msg("complaint summary edited")
}

func (s *Service) setLanguage(ctx context.Context, ev messaging.Event, lang string) {
	if !s.views.Localizer().Has(lang) {
		s.log.Debug().Str("lang", lang).Msg("unknown language requested")
		return
	}
	s.sessions.SetLanguage(ev.UserID, lang)
	s.replyKey(ctx, ev.ChatID, lang, "languageChanged", nil)
}
