// Package market provides the agents a firm negotiates with, each running as
// an actor: workers who take and leave jobs, suppliers who quote and sell a
// single good, and the employer endpoint through which other firms ask a firm
// to release a worker. The Ref types implement the firm package's
// collaborator interfaces by sending messages.
package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/firmsim/internal/actor"
	"github.com/talgya/firmsim/internal/firm"
)

type employerQuery struct{}
type wageQuery struct{}
type statusQuery struct{}
type quitRequest struct{}

type hireRequest struct {
	Employer firm.Employer
	Wage     float64
}

// WorkerStatus is a worker's answer to a status query.
type WorkerStatus struct {
	ID       string  `json:"id"`
	Employer string  `json:"employer,omitempty"` // Empty when unemployed
	Wage     float64 `json:"wage"`
	Hires    int     `json:"hires"`
}

// Worker is the state of one worker agent. It accepts whichever hire
// instruction arrives and keeps exactly one employer, or none.
type Worker struct {
	id       string
	employer firm.Employer
	wage     float64
	hires    int
}

// Receive implements actor.Handler.
func (w *Worker) Receive(ctx context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case employerQuery:
		if w.employer == nil {
			return nil, nil
		}
		return w.employer, nil
	case wageQuery:
		return w.wage, nil
	case hireRequest:
		w.employer, w.wage = m.Employer, m.Wage
		w.hires++
		return nil, nil
	case quitRequest:
		w.employer, w.wage = nil, 0
		return nil, nil
	case statusQuery:
		st := WorkerStatus{ID: w.id, Wage: w.wage, Hires: w.hires}
		if w.employer != nil {
			st.Employer = w.employer.ID()
		}
		return st, nil
	default:
		return nil, fmt.Errorf("worker %s: %w: %T", w.id, actor.ErrUnknownMessage, msg)
	}
}

// WorkerRef addresses a worker agent.
type WorkerRef struct {
	ref *actor.Ref
}

// SpawnWorker starts a worker agent. An empty id gets a generated one.
func SpawnWorker(sys *actor.System, id string) (WorkerRef, error) {
	if id == "" {
		id = "worker-" + uuid.NewString()
	}
	w := &Worker{id: id}
	ref, err := sys.Spawn(id, w)
	if err != nil {
		return WorkerRef{}, fmt.Errorf("spawn worker: %w", err)
	}
	return WorkerRef{ref: ref}, nil
}

func (r WorkerRef) ID() string { return r.ref.ID() }

func (r WorkerRef) Employer(ctx context.Context) (firm.Employer, error) {
	return actor.Call[firm.Employer](ctx, r.ref, employerQuery{})
}

func (r WorkerRef) Wage(ctx context.Context) (float64, error) {
	return actor.Call[float64](ctx, r.ref, wageQuery{})
}

func (r WorkerRef) Hire(ctx context.Context, employer firm.Employer, wage float64) error {
	_, err := r.ref.Ask(ctx, hireRequest{Employer: employer, Wage: wage})
	return err
}

func (r WorkerRef) Quit(ctx context.Context) error {
	_, err := r.ref.Ask(ctx, quitRequest{})
	return err
}

// Status reports the worker's employment.
func (r WorkerRef) Status(ctx context.Context) (WorkerStatus, error) {
	return actor.Call[WorkerStatus](ctx, r.ref, statusQuery{})
}
