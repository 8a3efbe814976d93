package razroom

import (
	"context"
)

// Dirty flags are pull-based notifications: the first reader gets the value
// and clears it. A missed poll loses only the notification, never the data.

func (e *Engine) consume(ctx context.Context, ref Ref, flag string) (bool, error) {
	var v bool
	err := e.with(ref, func(t *Table) (err error) {
		v, err = t.consume(ctx, flag)
		return
	})
	return v, err
}

// ConsumeChanged reports a change in the room's composition.
func (e *Engine) ConsumeChanged(ctx context.Context, ref Ref) (bool, error) {
	return e.consume(ctx, ref, flagChanged)
}

// ConsumeStateDirty reports a change of turn or board state.
func (e *Engine) ConsumeStateDirty(ctx context.Context, ref Ref) (bool, error) {
	return e.consume(ctx, ref, flagStateDirty)
}

// ConsumeScoresPendingPush reports a result not yet delivered to clients.
func (e *Engine) ConsumeScoresPendingPush(ctx context.Context, ref Ref) (bool, error) {
	return e.consume(ctx, ref, flagPendingPush)
}

// ConsumeScoresPendingRating reports a result not yet reported to the rating
// authority.
func (e *Engine) ConsumeScoresPendingRating(ctx context.Context, ref Ref) (bool, error) {
	return e.consume(ctx, ref, flagPendingRating)
}

func (e *Engine) SetScoresPendingRating(ctx context.Context, ref Ref, v bool) error {
	return e.with(ref, func(t *Table) error {
		if ok, err := t.exists(ctx); err != nil || !ok {
			return err
		}
		return t.set(ctx, flagPendingRating, v)
	})
}
