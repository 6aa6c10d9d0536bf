// Package actor provides the mailbox runtime that carries every cross-agent
// request. Each actor owns a goroutine and a buffered inbox and answers its
// messages one at a time, in arrival order. Callers suspend in Ask until the
// answer arrives, so their own program order is preserved.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrStopped is returned when the actor or the whole system has shut down.
	ErrStopped = errors.New("actor stopped")
	// ErrUnknownMessage is returned by handlers for payloads they do not accept.
	ErrUnknownMessage = errors.New("unknown message")
)

// Handler processes one message and produces the reply.
type Handler interface {
	Receive(ctx context.Context, msg any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg any) (any, error)

func (f HandlerFunc) Receive(ctx context.Context, msg any) (any, error) { return f(ctx, msg) }

type envelope struct {
	ctx   context.Context
	msg   any
	reply chan result
}

type result struct {
	value any
	err   error
}

// System owns the registry of running actors.
type System struct {
	mu       sync.RWMutex
	registry map[string]*Ref

	inboxSize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a System.
type Option func(*System)

// WithInboxSize sets the mailbox buffer for actors spawned afterwards.
func WithInboxSize(n int) Option {
	return func(s *System) {
		if n > 0 {
			s.inboxSize = n
		}
	}
}

// NewSystem creates an empty system.
func NewSystem(opts ...Option) *System {
	ctx, cancel := context.WithCancel(context.Background())
	s := &System{
		registry:  make(map[string]*Ref),
		inboxSize: 100,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn registers h under id and starts its loop.
func (s *System) Spawn(id string, h Handler) (*Ref, error) {
	if id == "" {
		return nil, errors.New("spawn failed: empty actor ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nil, ErrStopped
	}
	if _, exists := s.registry[id]; exists {
		return nil, fmt.Errorf("spawn failed: actor with ID %q already exists", id)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	ref := &Ref{
		id:     id,
		inbox:  make(chan envelope, s.inboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.registry[id] = ref

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ref.run(h)
	}()

	return ref, nil
}

// Len returns the number of registered actors.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

// Shutdown stops every actor and waits for their loops to exit.
func (s *System) Shutdown() {
	slog.Debug("actor system shutting down", "actors", s.Len())
	s.cancel()
	s.wg.Wait()
}

// Ref addresses a running actor.
type Ref struct {
	id     string
	inbox  chan envelope
	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the actor's address.
func (r *Ref) ID() string { return r.id }

// Ask delivers msg and blocks until the actor answers, ctx ends or the actor stops.
func (r *Ref) Ask(ctx context.Context, msg any) (any, error) {
	env := envelope{ctx: ctx, msg: msg, reply: make(chan result, 1)}

	select {
	case r.inbox <- env:
	case <-ctx.Done():
		return nil, fmt.Errorf("ask %s: %w", r.id, ctx.Err())
	case <-r.ctx.Done():
		return nil, fmt.Errorf("ask %s: %w", r.id, ErrStopped)
	}

	select {
	case res := <-env.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("ask %s: %w", r.id, ctx.Err())
	case <-r.ctx.Done():
		// The loop may have answered just before stopping.
		select {
		case res := <-env.reply:
			return res.value, res.err
		default:
			return nil, fmt.Errorf("ask %s: %w", r.id, ErrStopped)
		}
	}
}

func (r *Ref) run(h Handler) {
	for {
		select {
		case env := <-r.inbox:
			r.process(h, env)
		case <-r.ctx.Done():
			r.drain()
			return
		}
	}
}

// drain rejects whatever is still queued so no caller waits forever.
func (r *Ref) drain() {
	for {
		select {
		case env := <-r.inbox:
			env.reply <- result{err: ErrStopped}
		default:
			return
		}
	}
}

func (r *Ref) process(h Handler, env envelope) {
	if env.ctx.Err() != nil {
		env.reply <- result{err: env.ctx.Err()}
		return
	}
	v, err := h.Receive(env.ctx, env.msg)
	env.reply <- result{value: v, err: err}
}

// Call asks r and asserts the reply type.
func Call[T any](ctx context.Context, r *Ref, msg any) (T, error) {
	var zero T
	v, err := r.Ask(ctx, msg)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("ask %s: unexpected reply %T", r.id, v)
	}
	return out, nil
}
