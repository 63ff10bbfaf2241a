package messaging

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrPumpStopped is returned by Submit after Stop.
	ErrPumpStopped = errors.New("event pump stopped")
	// ErrQueueFull is returned by Submit when the user already has a full
	// backlog of unhandled events.
	ErrQueueFull = errors.New("user event queue is full")
)

// Handler processes one event.
type Handler func(ctx context.Context, ev Event)

// Pump gives every active user a queue and a goroutine of their own. Events
// of one user are handled in arrival order; a slow user never delays another
// one. The goroutine exits once its queue drains.
type Pump struct {
	backlog int
	slots   chan struct{}
	handler Handler
	log     zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	queues  map[int64][]Event
	wg      sync.WaitGroup
	stopped bool
}

// NewPump creates a pump running at most workers handlers at once and keeping
// up to buffer pending events per user.
func NewPump(workers, buffer int, h Handler, log zerolog.Logger) *Pump {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Pump{
		backlog: buffer,
		slots:   make(chan struct{}, workers),
		handler: h,
		log:     log.With().Str("component", "pump").Logger(),
		ctx:     context.Background(),
		queues:  make(map[int64][]Event),
	}
}

// Start sets the context handed to the handler.
func (p *Pump) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

// Submit queues ev for its user without blocking.
func (p *Pump) Submit(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPumpStopped
	}
	q, active := p.queues[ev.UserID]
	if len(q) >= p.backlog {
		return ErrQueueFull
	}
	p.queues[ev.UserID] = append(q, ev)
	if !active {
		p.wg.Add(1)
		go p.drain(ev.UserID)
	}
	return nil
}

func (p *Pump) drain(userID int64) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		q := p.queues[userID]
		if len(q) == 0 {
			delete(p.queues, userID)
			p.mu.Unlock()
			return
		}
		ev := q[0]
		p.queues[userID] = q[1:]
		ctx := p.ctx
		p.mu.Unlock()

		p.slots <- struct{}{}
		p.handle(ctx, ev)
		<-p.slots
	}
}

func (p *Pump) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int64("user_id", ev.UserID).Msg("event handler panicked")
		}
	}()
	p.handler(ctx, ev)
}

// Active reports how many users currently have a running queue.
func (p *Pump) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues)
}

// Stop rejects new events and waits for queued ones to finish.
func (p *Pump) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.wg.Wait()
}
