package razroom

import (
	"context"
)

// Variant is the set of rules a concrete game plugs into the engine. The
// engine owns seats, turns, clocks and results; a variant only owns the
// per-seat variant state and the shared resources it keeps on the Table.
type Variant interface {
	Name() string
	Schema() Schema

	// Setup deals the initial variant state of every seat and resets the
	// shared resources. It runs after the starting player is chosen.
	Setup(ctx context.Context, t *Table) error

	// Play applies one move. Returning false rejects it without error.
	Play(ctx context.Context, t *Table, chair Chair, action, move string) (bool, error)

	IsRoundOver(ctx context.Context, t *Table) (bool, error)
	IsDraw(ctx context.Context, t *Table) (bool, error)
	// SelectLosers records the round's losers in the variant's own bookkeeping.
	SelectLosers(ctx context.Context, t *Table) error
	LosingDisplayNames(ctx context.Context, t *Table) ([]string, error)
	LegalMoves(ctx context.Context, t *Table, chair Chair) ([]string, error)
}

// Viewer is implemented by variants that expose a public board view in the
// room state.
type Viewer interface {
	View(ctx context.Context, t *Table) (any, error)
}
