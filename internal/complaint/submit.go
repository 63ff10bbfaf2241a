package complaint

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"

	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/dispatch"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/metrics"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/session"
	"qabulxona/backend/internal/storage"
	"qabulxona/backend/internal/views"
	"qabulxona/backend/internal/wizard"
)

// submit stores the draft and only then delivers it. A failed insert keeps
// the session at the confirmation step so the user can press submit again.
func (s *Service) submit(ctx context.Context, chatID int64, sess session.Session, d wizard.Draft) {
	log := s.log.With().Int64("user_id", sess.UserID).Logger()
	c := &models.Complaint{
		SubmitterID:     sess.UserID,
		SubmitterHandle: d.Handle,
		FullName:        d.FullName,
		Address:         d.Address,
		Phone:           d.Phone,
		NationalID:      d.NationalID,
		Section:         d.Section,
		Summary:         d.Summary,
		Status:          models.StatusPending,
		Language:        sess.Language,
		Media:           datatypes.JSONSlice[models.MediaItem](d.Media),
	}

	if err := s.insert(ctx, c); err != nil {
		metrics.ComplaintsSubmittedTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("failed to store complaint")
		s.audit(ctx, sess.UserID, models.ActionSubmitFailed, err.Error())
		s.send(ctx, messaging.Reply{
			ChatID:   chatID,
			Text:     s.views.Text(sess.Language, "submitFailed", nil),
			Keyboard: s.views.ConfirmKeyboard(sess.Language),
		})
		return
	}
	metrics.ComplaintsSubmittedTotal.WithLabelValues("stored").Inc()
	log = log.With().Str("complaint_id", c.ID).Logger()

	s.endSession(sess.UserID)
	s.audit(ctx, sess.UserID, models.ActionSubmit, "Submitted complaint "+c.ID)
	s.publish(models.FeedEvent{Type: "complaint_submitted", ComplaintID: c.ID, Section: c.Section, Status: c.Status, Summary: c.Summary})

	staff := s.opts.DefaultLanguage
	failures := s.dispatcher.DeliverComplaint(ctx, s.views.Card(staff, c), s.views.Caption(staff, c), c.Media)

	s.send(ctx, messaging.Reply{
		ChatID:   chatID,
		Text:     s.views.Text(sess.Language, "success", localization.Fields{"id": c.ID}),
		Keyboard: views.RemoveKeyboard(),
	})
	if len(failures) > 0 {
		names := make([]string, len(failures))
		for i, f := range failures {
			names[i] = f.String()
		}
		log.Warn().Strs("failures", names).Msg("complaint delivered partially")
		s.replyKey(ctx, chatID, sess.Language, "submitPartial", localization.Fields{
			"id":      c.ID,
			"targets": dispatch.JoinTargets(dispatch.FailedTargets(failures)),
		})
		return
	}
	log.Info().Msg("complaint submitted")
}

// insert validates c and stores it under a fresh id, retrying when the
// generator collides with an existing row.
func (s *Service) insert(ctx context.Context, c *models.Complaint) error {
	var err error
	for attempt := 0; attempt < config.MaxIDAttempts; attempt++ {
		c.ID = s.ids.NewID(c.SubmitterID, s.now())
		if err = c.Validate(); err != nil {
			return err
		}
		err = s.store.InsertComplaint(ctx, c)
		if !errors.Is(err, storage.ErrDuplicateID) {
			return err
		}
		s.log.Warn().Str("complaint_id", c.ID).Int("attempt", attempt+1).Msg("complaint id collision")
	}
	return err
}

func firstField(args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
