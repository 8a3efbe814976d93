package razroom

import (
	"context"

	"go.uber.org/zap"
)

// Clocks are accounted lazily: nothing ticks in the background, every pass
// charges the time elapsed since the last one. A room nobody touches does
// not forfeit until the next operation reaches it.

// updateTimes charges the current player's move clock and the inactivity
// clock of every seat past the borderline ping count.
func (t *Table) updateTimes(ctx context.Context) error {
	status, err := t.Status(ctx)
	if err != nil || status != StatusOngoing {
		return err
	}
	now := t.clock()
	if cur, ok, err := getField[Chair](ctx, t, fieldCurrent); err != nil {
		return err
	} else if ok {
		checkpoint, _, err := getField[float64](ctx, t, fieldMoveCheckpoint)
		if err != nil {
			return err
		}
		if err := t.set(ctx, fieldMoveCheckpoint, now); err != nil {
			return err
		}
		if _, err := t.incrSeat(ctx, cur, seatMoveTime, -(now - checkpoint)); err != nil {
			return err
		}
	}
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return err
	}
	for _, c := range chairs {
		pings, _, err := getField[int](ctx, t, seatPath(c, seatInactivePings))
		if err != nil {
			return err
		}
		if pings <= borderlinePings {
			continue
		}
		checkpoint, ok, err := getField[float64](ctx, t, seatPath(c, seatInactivityCheckpoint))
		if err != nil {
			return err
		}
		if err := t.setSeat(ctx, c, seatInactivityCheckpoint, now); err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := t.incrSeat(ctx, c, seatTimeout, -(now - checkpoint)); err != nil {
			return err
		}
	}
	return nil
}

// exhausted returns the first seat whose budget in field ran out.
func (t *Table) exhausted(ctx context.Context, field string) (Chair, bool, error) {
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return "", false, err
	}
	for _, c := range chairs {
		left, ok, err := getField[float64](ctx, t, seatPath(c, field))
		if err != nil {
			return "", false, err
		}
		if ok && left <= 0 {
			return c, true, nil
		}
	}
	return "", false, nil
}

// CheckTimers runs the clocks and forfeits at most one seat: one out of move
// time first, otherwise one out of inactivity budget.
func (e *Engine) CheckTimers(ctx context.Context, ref Ref) error {
	return e.with(ref, func(t *Table) error {
		return e.checkTimers(ctx, t)
	})
}

func (e *Engine) checkTimers(ctx context.Context, t *Table) error {
	if err := t.updateTimes(ctx); err != nil {
		return err
	}
	status, err := t.Status(ctx)
	if err != nil || status != StatusOngoing {
		return err
	}
	kind := "undertime"
	chair, found, err := t.exhausted(ctx, seatMoveTime)
	if err != nil {
		return err
	}
	if !found {
		kind = "timeout"
		if chair, found, err = t.exhausted(ctx, seatTimeout); err != nil || !found {
			return err
		}
		if err := t.set(ctx, fieldEndedByTimeout, true); err != nil {
			return err
		}
	}
	name, err := t.DisplayName(ctx, chair)
	if err != nil {
		return err
	}
	forfeits.WithLabelValues(kind).Inc()
	e.log.Info("seat forfeited", zap.Stringer("room", t.ref), zap.String("chair", string(chair)), zap.String("kind", kind))
	return e.finish(ctx, t, []string{name})
}
