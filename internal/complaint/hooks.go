package complaint

import (
	"context"
	"fmt"

	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/metrics"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/report"
)

// Maintenance hooks. Each is a parameterless job for the scheduler; it
// returns an error only when the job could not run at all.

// RunDailyReminder tells every submitter with a pending complaint that it is
// still queued.
func (s *Service) RunDailyReminder(ctx context.Context) error {
	pending, err := s.store.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending complaints: %w", err)
	}
	sent := 0
	for _, c := range pending {
		lang := s.submitterLanguage(&c)
		text := s.views.Text(lang, "reminder", localization.Fields{"id": c.ID})
		if err := s.dispatcher.SendTo(ctx, messaging.Reply{ChatID: c.SubmitterID, Text: text}); err != nil {
			s.log.Warn().Err(err).Str("complaint_id", c.ID).Msg("reminder not delivered")
			continue
		}
		sent++
		s.audit(ctx, c.SubmitterID, models.ActionReminder, "Sent reminder for complaint "+c.ID)
	}
	s.log.Info().Int("pending", len(pending)).Int("sent", sent).Msg("daily reminder finished")
	return nil
}

// RunWeeklyStats sends the admins the number of complaints of the last
// seven days.
func (s *Service) RunWeeklyStats(ctx context.Context) error {
	now := s.now()
	count, err := s.store.CountCreatedBetween(ctx, now.AddDate(0, 0, -7), now)
	if err != nil {
		return fmt.Errorf("count weekly complaints: %w", err)
	}
	text := s.views.Text(s.opts.DefaultLanguage, "weeklyStats", localization.Fields{"count": count})
	if failed := s.dispatcher.NotifyAdmins(ctx, text); len(failed) > 0 {
		s.log.Warn().Int("failed", len(failed)).Msg("weekly stats not delivered to every admin")
	}
	s.audit(ctx, 0, models.ActionWeeklyStats, fmt.Sprintf("Sent weekly statistics: %d", count))
	return nil
}

// RunPeriodicExport sends the full CSV report to the admins.
func (s *Service) RunPeriodicExport(ctx context.Context) error {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list complaints: %w", err)
	}
	if len(all) == 0 {
		s.log.Info().Msg("no complaints to export")
		return nil
	}
	doc, err := s.exporter.Document(all, s.views.Text(s.opts.DefaultLanguage, "autoReport", nil))
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}
	if failed := s.dispatcher.SendDocumentToAdmins(ctx, doc); len(failed) > 0 {
		s.log.Warn().Int("failed", len(failed)).Msg("export not delivered to every admin")
	}
	s.audit(ctx, 0, models.ActionAutoReport, fmt.Sprintf("Exported %d complaints", len(all)))
	return nil
}

// RunMembershipCheck warns the admins when the bot can no longer reach the
// staff group.
func (s *Service) RunMembershipCheck(ctx context.Context) error {
	group := s.dispatcher.Group()
	if group == 0 {
		return nil
	}
	if err := s.messenger.CheckChat(ctx, group); err != nil {
		s.log.Error().Err(err).Int64("group_id", group).Msg("bot cannot reach the staff group")
		s.dispatcher.NotifyAdmins(ctx, s.views.Text(s.opts.DefaultLanguage, "groupRemoved", nil))
	}
	return nil
}

// RunGroupAnnouncement posts the configured announcement to the staff group.
func (s *Service) RunGroupAnnouncement(ctx context.Context) error {
	group := s.dispatcher.Group()
	if group == 0 {
		return nil
	}
	text := s.opts.AnnouncementText
	if text == "" {
		text = s.views.Text(s.opts.DefaultLanguage, "announcement", nil)
	}
	if err := s.dispatcher.SendTo(ctx, messaging.Reply{ChatID: group, Text: text}); err != nil {
		s.log.Error().Err(err).Int64("group_id", group).Msg("group announcement failed")
		s.dispatcher.NotifyAdmins(ctx, s.views.Text(s.opts.DefaultLanguage, "announcementFailed", localization.Fields{"group": group}))
		return nil
	}
	s.audit(ctx, 0, models.ActionAnnouncement, "Sent scheduled group message")
	return nil
}

// RunSessionSweep drops wizards idle for longer than the configured timeout.
func (s *Service) RunSessionSweep(_ context.Context) error {
	if s.opts.SessionIdleTimeout <= 0 {
		return nil
	}
	dropped := s.sessions.Sweep(s.now().Add(-s.opts.SessionIdleTimeout))
	if dropped > 0 {
		s.log.Info().Int("dropped", dropped).Msg("idle sessions swept")
	}
	metrics.ActiveSessions.Set(float64(s.sessions.Count()))
	return nil
}

// GetComplaintDataset returns every complaint as flat report rows.
func (s *Service) GetComplaintDataset(ctx context.Context) ([]report.Row, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return report.Rows(all, s.views.Location(), s.now()), nil
}

func (s *Service) submitterLanguage(c *models.Complaint) string {
	if lang := s.sessions.Language(c.SubmitterID); lang != "" {
		return lang
	}
	if c.Language != "" {
		return c.Language
	}
	return s.opts.DefaultLanguage
}
