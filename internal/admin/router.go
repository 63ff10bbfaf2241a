// Package admin routes privileged commands and dashboard callbacks onto the
// repository and the dispatcher.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"qabulxona/backend/internal/dispatch"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/metrics"
	"qabulxona/backend/internal/models"
	"qabulxona/backend/internal/report"
	"qabulxona/backend/internal/storage"
	"qabulxona/backend/internal/views"
)

var (
	// ErrPermissionDenied is returned when a non-admin issues an admin command.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUsage is returned when command arguments are missing or malformed.
	ErrUsage = errors.New("invalid command usage")
	// ErrUnknownCommand is returned for commands this router does not serve.
	ErrUnknownCommand = errors.New("unknown admin command")
)

const (
	auditPageSize  = 20
	maxStatusCards = 10
)

// LanguageSource resolves a user's chosen locale.
type LanguageSource interface {
	Language(userID int64) string
}

// FeedPublisher receives complaint lifecycle events.
type FeedPublisher interface {
	Publish(ev models.FeedEvent)
}

type commandFunc func(r *Router, ctx context.Context, actorID int64, lang, args string) error

// Router serves the admin command set.
type Router struct {
	admins     map[int64]struct{}
	store      storage.Storage
	dispatcher *dispatch.Dispatcher
	views      *views.Renderer
	exporter   *report.CSVExporter
	languages  LanguageSource
	feed       FeedPublisher
	fallback   string
	now        func() time.Time
	log        zerolog.Logger

	commands map[string]commandFunc

	mu      sync.Mutex
	pending map[int64]*broadcastDraft
}

// broadcastDraft is the first phase of a broadcast. An empty text means the
// router is still waiting for the admin to type it.
type broadcastDraft struct {
	text string
}

// Deps groups the collaborators of a Router.
type Deps struct {
	Admins     []int64
	Storage    storage.Storage
	Dispatcher *dispatch.Dispatcher
	Views      *views.Renderer
	Exporter   *report.CSVExporter
	Languages  LanguageSource
	Feed       FeedPublisher
	// DefaultLanguage is used for admins who never picked a locale.
	DefaultLanguage string
}

// NewRouter creates a router for the given admin allow-list.
func NewRouter(d Deps, log zerolog.Logger) *Router {
	r := &Router{
		admins:     make(map[int64]struct{}, len(d.Admins)),
		store:      d.Storage,
		dispatcher: d.Dispatcher,
		views:      d.Views,
		exporter:   d.Exporter,
		languages:  d.Languages,
		feed:       d.Feed,
		fallback:   d.DefaultLanguage,
		now:        time.Now,
		log:        log.With().Str("component", "admin").Logger(),
		pending:    make(map[int64]*broadcastDraft),
	}
	for _, id := range d.Admins {
		r.admins[id] = struct{}{}
	}
	r.commands = map[string]commandFunc{
		"status":    (*Router).status,
		"assign":    (*Router).assign,
		"delete":    (*Router).deleteComplaint,
		"block":     (*Router).block,
		"unblock":   (*Router).unblock,
		"reply":     (*Router).reply,
		"comment":   (*Router).comment,
		"comments":  (*Router).comments,
		"export":    (*Router).export,
		"stats":     (*Router).stats,
		"broadcast": (*Router).broadcast,
		"dashboard": (*Router).dashboard,
		"audit":     (*Router).audit,
	}
	return r
}

// WithClock replaces the time source.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// IsAdmin reports whether userID is on the allow-list.
func (r *Router) IsAdmin(userID int64) bool {
	_, ok := r.admins[userID]
	return ok
}

// Handles reports whether command is an admin command.
func (r *Router) Handles(command string) bool {
	_, ok := r.commands[command]
	return ok
}

// HandleAdminCommand checks the allow-list and runs command with args.
// Replies go to the actor; the returned error is for logging and metrics.
func (r *Router) HandleAdminCommand(ctx context.Context, actorID int64, command, args string) error {
	fn, ok := r.commands[command]
	if !ok {
		return ErrUnknownCommand
	}
	lang := r.language(actorID)
	if !r.IsAdmin(actorID) {
		r.deny(ctx, actorID, lang, command)
		return ErrPermissionDenied
	}

	err := fn(r, ctx, actorID, lang, strings.TrimSpace(args))
	metrics.RecordAdminCommand(command, err)
	if err != nil {
		r.log.Warn().Err(err).Int64("actor_id", actorID).Str("command", command).Msg("admin command failed")
	}
	return err
}

// HandleCallback serves the adm:* inline buttons.
func (r *Router) HandleCallback(ctx context.Context, actorID int64, data string) error {
	lang := r.language(actorID)
	if !r.IsAdmin(actorID) {
		r.deny(ctx, actorID, lang, data)
		return ErrPermissionDenied
	}

	var err error
	switch {
	case strings.HasPrefix(data, views.AdminFilterPrefix):
		err = r.filterSection(ctx, actorID, lang, strings.TrimPrefix(data, views.AdminFilterPrefix))
	case strings.HasPrefix(data, views.AdminStatusPrefix):
		rest := strings.TrimPrefix(data, views.AdminStatusPrefix)
		sep := strings.LastIndexByte(rest, ':')
		if sep < 0 {
			return ErrUsage
		}
		status, ok := views.StatusCodes[rest[sep+1:]]
		if !ok {
			return models.ErrInvalidStatus
		}
		err = r.setStatus(ctx, actorID, lang, rest[:sep], status)
	case data == views.AdminExport:
		err = r.export(ctx, actorID, lang, "")
	case data == views.AdminBroadcastStart:
		err = r.broadcast(ctx, actorID, lang, "")
	case data == views.AdminBroadcastSend:
		err = r.confirmBroadcast(ctx, actorID, lang)
	case data == views.AdminBroadcastStop:
		r.CancelBroadcast(actorID)
		r.replyKey(ctx, actorID, lang, "broadcastCancelled", nil)
	default:
		return ErrUnknownCommand
	}
	metrics.RecordAdminCommand("callback", err)
	return err
}

// CaptureBroadcast consumes text when actorID is in the first phase of a
// broadcast. It reports whether the text was consumed.
func (r *Router) CaptureBroadcast(ctx context.Context, actorID int64, text string) bool {
	if !r.IsAdmin(actorID) {
		return false
	}
	r.mu.Lock()
	draft, ok := r.pending[actorID]
	if !ok || draft.text != "" {
		r.mu.Unlock()
		return false
	}
	draft.text = strings.TrimSpace(text)
	r.mu.Unlock()

	lang := r.language(actorID)
	r.preview(ctx, actorID, lang, draft.text)
	return true
}

func (r *Router) deny(ctx context.Context, actorID int64, lang, what string) {
	metrics.RecordAdminCommand(what, ErrPermissionDenied)
	r.replyKey(ctx, actorID, lang, "invalidCommand", nil)
	r.auditLog(ctx, actorID, models.ActionPermissionDenied, what)
}

func (r *Router) status(ctx context.Context, actorID int64, lang, args string) error {
	id, rest := splitFirst(args)
	if id == "" || rest == "" {
		r.replyKey(ctx, actorID, lang, "invalidStatusId", nil)
		return ErrUsage
	}
	status, err := models.ParseStatus(rest)
	if err != nil {
		r.replyKey(ctx, actorID, lang, "invalidStatusId", nil)
		return err
	}
	return r.setStatus(ctx, actorID, lang, id, status)
}

// setStatus writes a validated status and notifies the submitter in the
// language they used.
func (r *Router) setStatus(ctx context.Context, actorID int64, lang, id string, status models.Status) error {
	c, err := r.lookup(ctx, actorID, lang, id)
	if err != nil {
		return err
	}
	if err := r.store.UpdateStatus(ctx, id, status); err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}

	fields := localization.Fields{"id": id, "status": status}
	r.replyKey(ctx, actorID, lang, "statusUpdated", fields)
	if c.SubmitterID != actorID {
		r.sendTo(ctx, c.SubmitterID, r.views.Text(r.submitterLanguage(c), "statusUpdated", fields))
	}
	r.auditLog(ctx, actorID, models.ActionUpdateStatus, fmt.Sprintf("Updated complaint %s to %s", id, status))
	r.publish(models.FeedEvent{Type: "status_changed", ComplaintID: id, Section: c.Section, Status: status})
	return nil
}

func (r *Router) assign(ctx context.Context, actorID int64, lang, args string) error {
	id, assignee := splitFirst(args)
	if id == "" || assignee == "" {
		r.replyKey(ctx, actorID, lang, "assignUsage", nil)
		return ErrUsage
	}
	if err := r.store.UpdateAssignee(ctx, id, assignee); err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	r.replyKey(ctx, actorID, lang, "assignSuccess", localization.Fields{"id": id, "assignee": assignee})
	r.auditLog(ctx, actorID, models.ActionAssign, fmt.Sprintf("Assigned complaint %s to %s", id, assignee))
	return nil
}

func (r *Router) deleteComplaint(ctx context.Context, actorID int64, lang, args string) error {
	id, _ := splitFirst(args)
	if id == "" {
		r.replyKey(ctx, actorID, lang, "deleteUsage", nil)
		return ErrUsage
	}
	if err := r.store.DeleteComplaint(ctx, id); err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	r.replyKey(ctx, actorID, lang, "deleteSuccess", localization.Fields{"id": id})
	r.auditLog(ctx, actorID, models.ActionDelete, "Deleted complaint "+id)
	r.publish(models.FeedEvent{Type: "complaint_deleted", ComplaintID: id})
	return nil
}

func (r *Router) block(ctx context.Context, actorID int64, lang, args string) error {
	rawID, reason := splitFirst(args)
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID == 0 {
		r.replyKey(ctx, actorID, lang, "blockUsage", nil)
		return ErrUsage
	}
	if err := r.store.SetBlocked(ctx, userID, reason); err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	r.replyKey(ctx, actorID, lang, "blockSuccess", localization.Fields{"user_id": userID})
	r.sendTo(ctx, userID, r.views.Text(r.language(userID), "blockedUser", nil))
	r.auditLog(ctx, actorID, models.ActionBlock, fmt.Sprintf("Blocked user %d: %s", userID, reason))
	return nil
}

func (r *Router) unblock(ctx context.Context, actorID int64, lang, args string) error {
	rawID, _ := splitFirst(args)
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID == 0 {
		r.replyKey(ctx, actorID, lang, "unblockUsage", nil)
		return ErrUsage
	}
	if err := r.store.Unblock(ctx, userID); err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	r.replyKey(ctx, actorID, lang, "unblockSuccess", localization.Fields{"user_id": userID})
	r.auditLog(ctx, actorID, models.ActionUnblock, fmt.Sprintf("Unblocked user %d", userID))
	return nil
}

func (r *Router) reply(ctx context.Context, actorID int64, lang, args string) error {
	id, text := splitFirst(args)
	if id == "" || text == "" {
		r.replyKey(ctx, actorID, lang, "replyUsage", nil)
		return ErrUsage
	}
	c, err := r.lookup(ctx, actorID, lang, id)
	if err != nil {
		return err
	}
	msg := r.views.Text(r.submitterLanguage(c), "replyMessage", localization.Fields{"id": id, "text": text})
	if err := r.dispatcher.SendTo(ctx, messaging.Reply{ChatID: c.SubmitterID, Text: msg}); err != nil {
		r.replyKey(ctx, actorID, lang, "replyFailed", nil)
		return fmt.Errorf("reply to %d: %w", c.SubmitterID, err)
	}
	r.replyKey(ctx, actorID, lang, "replySent", localization.Fields{"id": id})
	r.auditLog(ctx, actorID, models.ActionReply, fmt.Sprintf("Replied to complaint %s", id))
	return nil
}

func (r *Router) comment(ctx context.Context, actorID int64, lang, args string) error {
	id, text := splitFirst(args)
	if id == "" || text == "" {
		r.replyKey(ctx, actorID, lang, "commentUsage", nil)
		return ErrUsage
	}
	if _, err := r.lookup(ctx, actorID, lang, id); err != nil {
		return err
	}
	if err := r.store.AddComment(ctx, id, text, actorID); err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	r.replyKey(ctx, actorID, lang, "commentAdded", localization.Fields{"id": id})
	r.auditLog(ctx, actorID, models.ActionComment, fmt.Sprintf("Commented on complaint %s", id))
	return nil
}

func (r *Router) comments(ctx context.Context, actorID int64, lang, args string) error {
	id, _ := splitFirst(args)
	if id == "" {
		r.replyKey(ctx, actorID, lang, "commentsUsage", nil)
		return ErrUsage
	}
	list, err := r.store.ListComments(ctx, id)
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	if len(list) == 0 {
		r.replyKey(ctx, actorID, lang, "commentsEmpty", localization.Fields{"id": id})
		return nil
	}
	lines := make([]string, len(list))
	for i, c := range list {
		lines[i] = fmt.Sprintf("• %s (%d): %s", r.views.Time(c.CreatedAt), c.AdminID, c.Text)
	}
	r.replyKey(ctx, actorID, lang, "commentsList", localization.Fields{"id": id, "list": strings.Join(lines, "\n")})
	return nil
}

func (r *Router) export(ctx context.Context, actorID int64, lang, _ string) error {
	all, err := r.store.ListAll(ctx)
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	if len(all) == 0 {
		r.replyKey(ctx, actorID, lang, "noComplaints", nil)
		return nil
	}
	doc, err := r.exporter.Document(all, r.views.Text(lang, "exportSuccess", nil))
	if err != nil {
		r.replyKey(ctx, actorID, lang, "operationFailed", nil)
		return fmt.Errorf("build export: %w", err)
	}
	if err := r.dispatcher.SendDocument(ctx, actorID, doc); err != nil {
		return fmt.Errorf("send export: %w", err)
	}
	r.auditLog(ctx, actorID, models.ActionExport, fmt.Sprintf("Exported %d complaints", len(all)))
	return nil
}

// stats counts today's complaints by calendar day in the display zone.
func (r *Router) stats(ctx context.Context, actorID int64, lang, _ string) error {
	now := r.now()
	start, end := dayBounds(now, r.views.Location())
	today, err := r.store.CountCreatedBetween(ctx, start, end)
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	total, err := r.store.CountCreatedBetween(ctx, time.Time{}, now.Add(24*time.Hour))
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	r.replyKey(ctx, actorID, lang, "statsToday", localization.Fields{
		"date":  start.Format("02.01.2006"),
		"today": today,
		"total": total,
	})
	r.auditLog(ctx, actorID, models.ActionStats, "Viewed statistics")
	return nil
}

func (r *Router) dashboard(ctx context.Context, actorID int64, lang, _ string) error {
	all, err := r.store.ListAll(ctx)
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	counts := map[models.Status]int{}
	for _, c := range all {
		counts[c.Status]++
	}
	text := r.views.Text(lang, "adminDashboard", localization.Fields{
		"total":       len(all),
		"pending":     counts[models.StatusPending],
		"in_progress": counts[models.StatusInProgress],
		"resolved":    counts[models.StatusResolved],
	})
	r.send(ctx, messaging.Reply{ChatID: actorID, Text: text, Keyboard: r.views.DashboardKeyboard(lang)})
	r.auditLog(ctx, actorID, models.ActionDashboard, "Opened dashboard")
	return nil
}

func (r *Router) filterSection(ctx context.Context, actorID int64, lang, rawIdx string) error {
	tag, ok := r.views.SectionTag(rawIdx)
	if !ok {
		return ErrUsage
	}
	list, err := r.store.ListBySection(ctx, tag)
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	if len(list) == 0 {
		r.replyKey(ctx, actorID, lang, "noComplaints", nil)
		return nil
	}
	r.sendTo(ctx, actorID, r.views.SectionList(lang, tag, list))

	shown := 0
	for i := len(list) - 1; i >= 0 && shown < maxStatusCards; i-- {
		c := list[i]
		if c.Status == models.StatusResolved {
			continue
		}
		r.send(ctx, messaging.Reply{ChatID: actorID, Text: r.views.Card(lang, &c), Keyboard: r.views.StatusKeyboard(lang, c.ID)})
		shown++
	}
	return nil
}

func (r *Router) audit(ctx context.Context, actorID int64, lang, _ string) error {
	entries, err := r.store.ListAudit(ctx, auditPageSize)
	if err != nil {
		return r.storeFailed(ctx, actorID, lang, err)
	}
	if len(entries) == 0 {
		r.replyKey(ctx, actorID, lang, "auditEmpty", nil)
		return nil
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s | %d | %s | %s", r.views.Time(e.CreatedAt), e.ActorID, e.Action, e.Details)
	}
	r.replyKey(ctx, actorID, lang, "auditList", localization.Fields{"list": strings.Join(lines, "\n")})
	return nil
}

func (r *Router) lookup(ctx context.Context, actorID int64, lang, id string) (*models.Complaint, error) {
	c, err := r.store.GetComplaint(ctx, id)
	if err != nil {
		return nil, r.storeFailed(ctx, actorID, lang, err)
	}
	return c, nil
}

// storeFailed tells the actor what went wrong and passes err through.
func (r *Router) storeFailed(ctx context.Context, actorID int64, lang string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		r.replyKey(ctx, actorID, lang, "notFound", nil)
	} else {
		r.replyKey(ctx, actorID, lang, "operationFailed", nil)
	}
	return err
}

func (r *Router) language(userID int64) string {
	if r.languages != nil {
		if lang := r.languages.Language(userID); lang != "" {
			return lang
		}
	}
	return r.fallback
}

func (r *Router) submitterLanguage(c *models.Complaint) string {
	if r.languages != nil {
		if lang := r.languages.Language(c.SubmitterID); lang != "" {
			return lang
		}
	}
	if c.Language != "" {
		return c.Language
	}
	return r.fallback
}

func (r *Router) replyKey(ctx context.Context, chatID int64, lang, key string, fields localization.Fields) {
	r.sendTo(ctx, chatID, r.views.Text(lang, key, fields))
}

func (r *Router) sendTo(ctx context.Context, chatID int64, text string) {
	r.send(ctx, messaging.Reply{ChatID: chatID, Text: text})
}

func (r *Router) send(ctx context.Context, reply messaging.Reply) {
	if err := r.dispatcher.SendTo(ctx, reply); err != nil {
		r.log.Warn().Err(err).Int64("chat_id", reply.ChatID).Msg("failed to send admin reply")
	}
}

func (r *Router) auditLog(ctx context.Context, actorID int64, action, details string) {
	if err := r.store.AppendAudit(ctx, actorID, action, details); err != nil {
		r.log.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}

func (r *Router) publish(ev models.FeedEvent) {
	if r.feed == nil {
		return
	}
	ev.At = r.now()
	r.feed.Publish(ev)
}

// splitFirst splits "id rest of text" at the first run of whitespace.
func splitFirst(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", ""
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(args), fields[0]))
	return fields[0], rest
}

func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
