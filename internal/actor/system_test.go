package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type counter struct{ n int }

func (c *counter) Receive(ctx context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case int:
		c.n += m
		return c.n, nil
	default:
		return nil, ErrUnknownMessage
	}
}

func TestAskSerializesMessages(t *testing.T) {
	sys := NewSystem()
	defer sys.Shutdown()

	ref, err := sys.Spawn("counter", &counter{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ref.Ask(context.Background(), 1); err != nil {
				t.Errorf("ask: %v", err)
			}
		}()
	}
	wg.Wait()

	n, err := Call[int](context.Background(), ref, 0)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if n != 50 {
		t.Fatalf("expected 50 increments, got %d", n)
	}
}

func TestSpawnRejectsDuplicateAndEmptyID(t *testing.T) {
	sys := NewSystem()
	defer sys.Shutdown()

	if _, err := sys.Spawn("a", &counter{}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := sys.Spawn("a", &counter{}); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if _, err := sys.Spawn("", &counter{}); err == nil {
		t.Fatalf("expected empty id to be rejected")
	}
	if sys.Len() != 1 {
		t.Fatalf("expected one registered actor, got %d", sys.Len())
	}
}

func TestUnknownMessage(t *testing.T) {
	sys := NewSystem()
	defer sys.Shutdown()

	ref, _ := sys.Spawn("c", &counter{})
	if _, err := ref.Ask(context.Background(), "hello"); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestAskAfterShutdownFails(t *testing.T) {
	sys := NewSystem()
	ref, _ := sys.Spawn("c", &counter{})
	sys.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := ref.Ask(ctx, 1); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped after shutdown, got %v", err)
	}
}

func TestCallTypeMismatch(t *testing.T) {
	sys := NewSystem()
	defer sys.Shutdown()

	ref, _ := sys.Spawn("c", &counter{})
	if _, err := Call[string](context.Background(), ref, 1); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestSpawnAfterShutdown(t *testing.T) {
	sys := NewSystem()
	sys.Shutdown()
	if _, err := sys.Spawn("late", &counter{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestInboxSizeBuffersAsks(t *testing.T) {
	sys := NewSystem(WithInboxSize(4))
	defer sys.Shutdown()

	release := make(chan struct{})
	ref, err := sys.Spawn("gate", HandlerFunc(func(ctx context.Context, msg any) (any, error) {
		<-release
		return msg, nil
	}))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if got := cap(ref.inbox); got != 4 {
		t.Fatalf("expected inbox of 4, got %d", got)
	}

	// One message in the handler plus four queued fill the actor.
	for i := 0; i < 5; i++ {
		go ref.Ask(context.Background(), i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(ref.inbox) < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("expected four queued messages, got %d", len(ref.inbox))
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := ref.Ask(ctx, 99); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a full inbox to block until the deadline, got %v", err)
	}
	close(release)
}
