package market

import (
	"context"
	"fmt"

	"github.com/talgya/firmsim/internal/actor"
	"github.com/talgya/firmsim/internal/firm"
)

type fireRequest struct{ Worker firm.Worker }

// EmployerRef is a firm's inbound endpoint: other firms poaching one of its
// workers send the fire instruction here, and it is served while the firm's
// own step is suspended on some other request.
type EmployerRef struct {
	id  string
	ref *actor.Ref
}

// SpawnEmployer starts the endpoint for f and binds it as the employer
// reference f hands to the workers it hires.
func SpawnEmployer(sys *actor.System, f *firm.Firm) (EmployerRef, error) {
	ref, err := sys.Spawn("employer-"+f.ID(), actor.HandlerFunc(func(ctx context.Context, msg any) (any, error) {
		switch m := msg.(type) {
		case fireRequest:
			return nil, f.Fire(ctx, m.Worker)
		default:
			return nil, fmt.Errorf("employer %s: %w: %T", f.ID(), actor.ErrUnknownMessage, msg)
		}
	}))
	if err != nil {
		return EmployerRef{}, fmt.Errorf("spawn employer: %w", err)
	}
	e := EmployerRef{id: f.ID(), ref: ref}
	f.BindEmployer(e)
	return e, nil
}

// ID is the firm's identity, so it compares equal to the firm itself.
func (e EmployerRef) ID() string { return e.id }

func (e EmployerRef) Fire(ctx context.Context, w firm.Worker) error {
	_, err := e.ref.Ask(ctx, fireRequest{Worker: w})
	return err
}
