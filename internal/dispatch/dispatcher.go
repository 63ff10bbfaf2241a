// Package dispatch fans outbound messages out to several chats. Every send is
// attempted on its own; failures are collected and handed back instead of
// aborting sibling sends.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"qabulxona/backend/internal/config"
	"qabulxona/backend/internal/messaging"
	"qabulxona/backend/internal/metrics"
	"qabulxona/backend/internal/models"
)

// ItemText names the text part of a delivery in a Failure.
const ItemText = "text"

// Failure is one send that did not go through.
type Failure struct {
	Target int64
	Item   string
	Err    error
}

func (f Failure) String() string {
	return fmt.Sprintf("%d/%s", f.Target, f.Item)
}

// FailedTargets returns the distinct chats that had at least one failure.
func FailedTargets(failures []Failure) []int64 {
	seen := make(map[int64]struct{}, len(failures))
	var out []int64
	for _, f := range failures {
		if _, ok := seen[f.Target]; ok {
			continue
		}
		seen[f.Target] = struct{}{}
		out = append(out, f.Target)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// JoinTargets renders chat ids for user facing messages.
func JoinTargets(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

// Dispatcher sends to the configured admins and staff group.
type Dispatcher struct {
	messenger   messaging.Messenger
	admins      []int64
	group       int64
	concurrency int
	timeout     time.Duration
	log         zerolog.Logger
}

// New creates a dispatcher. A zero group disables group delivery.
func New(m messaging.Messenger, admins []int64, group int64, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		messenger:   m,
		admins:      admins,
		group:       group,
		concurrency: config.BroadcastConcurrency,
		timeout:     config.DeliveryTimeout,
		log:         log.With().Str("component", "dispatch").Logger(),
	}
}

// Group returns the staff group chat id.
func (d *Dispatcher) Group() int64 { return d.group }

// Targets lists every admin followed by the staff group, without duplicates.
func (d *Dispatcher) Targets() []int64 {
	ids := append([]int64(nil), d.admins...)
	if d.group != 0 {
		ids = append(ids, d.group)
	}
	return dedupe(ids)
}

func (d *Dispatcher) targetKind(id int64) string {
	if id == d.group {
		return "group"
	}
	for _, a := range d.admins {
		if a == id {
			return "admin"
		}
	}
	return "user"
}

// DeliverComplaint sends text and then every media item, each captioned with
// caption, to all targets. Within one target the order is preserved; targets
// run concurrently.
func (d *Dispatcher) DeliverComplaint(ctx context.Context, text, caption string, media []models.MediaItem) []Failure {
	return d.fanOut(ctx, d.Targets(), 0, func(ctx context.Context, target int64) []Failure {
		var failed []Failure
		if err := d.send(ctx, target, func(ctx context.Context) error {
			return messaging.SendText(ctx, d.messenger, target, text)
		}); err != nil {
			failed = append(failed, Failure{Target: target, Item: ItemText, Err: err})
		}
		for i, item := range media {
			if err := d.send(ctx, target, func(ctx context.Context) error {
				return d.messenger.SendMedia(ctx, target, item, caption)
			}); err != nil {
				failed = append(failed, Failure{Target: target, Item: fmt.Sprintf("%s#%d", item.Kind, i+1), Err: err})
			}
		}
		return failed
	})
}

// NotifyAdmins sends text to every admin.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, text string) []Failure {
	return d.fanOut(ctx, dedupe(d.admins), 0, func(ctx context.Context, target int64) []Failure {
		return d.sendText(ctx, target, text)
	})
}

// SendDocumentToAdmins sends the same file to every admin.
func (d *Dispatcher) SendDocumentToAdmins(ctx context.Context, doc messaging.Document) []Failure {
	return d.fanOut(ctx, dedupe(d.admins), 0, func(ctx context.Context, target int64) []Failure {
		if err := d.send(ctx, target, func(ctx context.Context) error {
			return d.messenger.SendDocument(ctx, target, doc)
		}); err != nil {
			return []Failure{{Target: target, Item: "document", Err: err}}
		}
		return nil
	})
}

// Broadcast sends text to every recipient plus the staff group with bounded
// concurrency and returns the chats that could not be reached.
func (d *Dispatcher) Broadcast(ctx context.Context, text string, recipients []int64) []int64 {
	targets := append([]int64(nil), recipients...)
	if d.group != 0 {
		targets = append(targets, d.group)
	}
	failures := d.fanOut(ctx, dedupe(targets), d.concurrency, func(ctx context.Context, target int64) []Failure {
		return d.sendText(ctx, target, text)
	})
	return FailedTargets(failures)
}

// SendDocument sends a file to a single chat.
func (d *Dispatcher) SendDocument(ctx context.Context, chatID int64, doc messaging.Document) error {
	return d.send(ctx, chatID, func(ctx context.Context) error {
		return d.messenger.SendDocument(ctx, chatID, doc)
	})
}

// SendTo sends one reply to a single chat.
func (d *Dispatcher) SendTo(ctx context.Context, r messaging.Reply) error {
	return d.send(ctx, r.ChatID, func(ctx context.Context) error {
		return d.messenger.Send(ctx, r)
	})
}

func (d *Dispatcher) sendText(ctx context.Context, target int64, text string) []Failure {
	if err := d.send(ctx, target, func(ctx context.Context) error {
		return messaging.SendText(ctx, d.messenger, target, text)
	}); err != nil {
		return []Failure{{Target: target, Item: ItemText, Err: err}}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, target int64, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := fn(ctx)
	metrics.RecordDelivery(d.targetKind(target), err)
	if err != nil {
		d.log.Warn().Err(err).Int64("target", target).Msg("send failed")
	}
	return err
}

// fanOut runs perTarget for every target. limit <= 0 means one goroutine per
// target.
func (d *Dispatcher) fanOut(ctx context.Context, targets []int64, limit int, perTarget func(context.Context, int64) []Failure) []Failure {
	var (
		mu       sync.Mutex
		failures []Failure
		g        errgroup.Group
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, target := range targets {
		g.Go(func() error {
			if failed := perTarget(ctx, target); len(failed) > 0 {
				mu.Lock()
				failures = append(failures, failed...)
				mu.Unlock()
			}
			// Failures are collected, never returned to the group.
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Target < failures[j].Target })
	return failures
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
