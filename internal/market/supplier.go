package market

import (
	"context"
	"fmt"

	"github.com/talgya/firmsim/internal/actor"
)

type quoteQuery struct{}

type sellRequest struct{ Qty int }

type restockRequest struct {
	Qty   int
	Price float64 // Replaces the current price when positive
}

// Quote is a supplier's price, available stock and units sold to date.
type Quote struct {
	Price  float64 `json:"price"`
	Supply int     `json:"supply"`
	Sold   int     `json:"sold"`
}

// Supplier is the state of a single-good seller.
type Supplier struct {
	id     string
	price  float64
	supply int
	sold   int
}

// Receive implements actor.Handler.
func (s *Supplier) Receive(ctx context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case quoteQuery:
		return Quote{Price: s.price, Supply: s.supply, Sold: s.sold}, nil
	case sellRequest:
		n := max(0, min(m.Qty, s.supply))
		s.supply -= n
		s.sold += n
		return n, nil
	case restockRequest:
		s.supply += max(0, m.Qty)
		if m.Price > 0 {
			s.price = m.Price
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("supplier %s: %w: %T", s.id, actor.ErrUnknownMessage, msg)
	}
}

// SupplierRef addresses a supplier agent.
type SupplierRef struct {
	ref *actor.Ref
}

// SpawnSupplier starts a supplier with an opening price and stock.
func SpawnSupplier(sys *actor.System, id string, price float64, supply int) (SupplierRef, error) {
	s := &Supplier{id: id, price: price, supply: supply}
	ref, err := sys.Spawn(id, s)
	if err != nil {
		return SupplierRef{}, fmt.Errorf("spawn supplier: %w", err)
	}
	return SupplierRef{ref: ref}, nil
}

func (r SupplierRef) ID() string { return r.ref.ID() }

func (r SupplierRef) Quote(ctx context.Context) (float64, int, error) {
	q, err := actor.Call[Quote](ctx, r.ref, quoteQuery{})
	if err != nil {
		return 0, 0, err
	}
	return q.Price, q.Supply, nil
}

// Status returns the full quote, including units sold to date.
func (r SupplierRef) Status(ctx context.Context) (Quote, error) {
	return actor.Call[Quote](ctx, r.ref, quoteQuery{})
}

func (r SupplierRef) Sell(ctx context.Context, qty int) (int, error) {
	return actor.Call[int](ctx, r.ref, sellRequest{Qty: qty})
}

// Restock adds stock and optionally reprices.
func (r SupplierRef) Restock(ctx context.Context, qty int, price float64) error {
	_, err := r.ref.Ask(ctx, restockRequest{Qty: qty, Price: price})
	return err
}
