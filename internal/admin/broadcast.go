package admin

import (
	"context"

	"qabulxona/backend/internal/dispatch"
	"qabulxona/backend/internal/localization"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/models"
)

// broadcast starts the two-phase flow. With args the text is captured right
// away; otherwise the next plain message of the admin becomes the text.
func (r *Router) broadcast(ctx context.Context, actorID int64, lang, args string) error {
	r.mu.Lock()
	r.pending[actorID] = &broadcastDraft{text: args}
	r.mu.Unlock()

	if args == "" {
		r.replyKey(ctx, actorID, lang, "broadcastPrompt", nil)
		return nil
	}
	r.preview(ctx, actorID, lang, args)
	return nil
}

func (r *Router) preview(ctx context.Context, actorID int64, lang, text string) {
	r.send(ctx, messaging.Reply{
		ChatID:   actorID,
		Text:     r.views.Text(lang, "broadcastPreview", localization.Fields{"text": text}),
		Keyboard: r.views.BroadcastKeyboard(lang),
	})
}

// confirmBroadcast is the second phase: nothing is sent without it.
func (r *Router) confirmBroadcast(ctx context.Context, actorID int64, lang string) error {
	r.mu.Lock()
	draft, ok := r.pending[actorID]
	if ok && draft.text != "" {
		delete(r.pending, actorID)
	}
	r.mu.Unlock()

	if !ok || draft.text == "" {
		r.replyKey(ctx, actorID, lang, "broadcastEmpty", nil)
		return ErrUsage
	}

	recipients, err := r.store.ListSubmitterIDs(ctx)
	if err != nil {
		r.replyKey(ctx, actorID, lang, "broadcastError", nil)
		return err
	}

	msg := r.views.Text(lang, "broadcastMessage", localization.Fields{"text": draft.text})
	failed := r.dispatcher.Broadcast(ctx, msg, recipients)
	if len(failed) == 0 {
		r.replyKey(ctx, actorID, lang, "broadcastSuccess", nil)
	} else {
		r.replyKey(ctx, actorID, lang, "broadcastPartial", localization.Fields{
			"count":   len(failed),
			"targets": dispatch.JoinTargets(failed),
		})
	}
	r.log.Info().Int64("actor_id", actorID).Int("recipients", len(recipients)).Int("failed", len(failed)).Msg("broadcast sent")
	r.auditLog(ctx, actorID, models.ActionBroadcast, draft.text)
	return nil
}

// CancelBroadcast drops the unsent broadcast of actorID, if any, and reports
// whether there was one.
func (r *Router) CancelBroadcast(actorID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[actorID]
	delete(r.pending, actorID)
	return ok
}
