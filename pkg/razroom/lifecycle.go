package razroom

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// inactivityBudget is the seconds a disconnected player has to come back.
const inactivityBudget = 30

// CanStart reports whether every chair is taken and every player is ready.
func (e *Engine) CanStart(ctx context.Context, ref Ref) (bool, error) {
	var ok bool
	err := e.with(ref, func(t *Table) (err error) {
		ok, err = t.canStart(ctx)
		return
	})
	return ok, err
}

func (t *Table) canStart(ctx context.Context) (bool, error) {
	status, err := t.Status(ctx)
	if err != nil || (status != StatusWaiting && status != StatusOngoing) {
		return false, err
	}
	cfg, err := t.Config(ctx)
	if err != nil {
		return false, err
	}
	seats, err := t.Seats(ctx)
	if err != nil || len(seats) == 0 || len(seats) != cfg.MaxPlayers {
		return false, err
	}
	for _, s := range seats {
		if !s.Ready {
			return false, nil
		}
	}
	return true, nil
}

// Start begins a round. It reports false when the room cannot start.
func (e *Engine) Start(ctx context.Context, ref Ref) (bool, error) {
	var started bool
	err := e.withVariant(ref, func(t *Table, v Variant) error {
		ok, err := t.canStart(ctx)
		if err != nil || !ok {
			return err
		}
		if err := e.start(ctx, t, v); err != nil {
			return fmt.Errorf("start %s: %w", ref, err)
		}
		started = true
		return nil
	})
	return started, err
}

// StartWaiting is Start restricted to waiting rooms, so it never restarts a
// running round.
func (e *Engine) StartWaiting(ctx context.Context, ref Ref) (bool, error) {
	var started bool
	err := e.withVariant(ref, func(t *Table, v Variant) error {
		status, err := t.Status(ctx)
		if err != nil || status != StatusWaiting {
			return err
		}
		ok, err := t.canStart(ctx)
		if err != nil || !ok {
			return err
		}
		if err := e.start(ctx, t, v); err != nil {
			return fmt.Errorf("start %s: %w", ref, err)
		}
		started = true
		return nil
	})
	return started, err
}

func (e *Engine) start(ctx context.Context, t *Table, v Variant) error {
	cfg, err := t.Config(ctx)
	if err != nil {
		return err
	}
	if err := t.setStatus(ctx, StatusOngoing); err != nil {
		return err
	}
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return err
	}
	for _, c := range chairs {
		if err := t.setSeat(ctx, c, seatMoveTime, cfg.TimePerPlayer.Seconds()); err != nil {
			return err
		}
		if err := t.setSeat(ctx, c, seatTimeout, inactivityBudget); err != nil {
			return err
		}
		if err := t.setSeat(ctx, c, seatPoints, 0); err != nil {
			return err
		}
		if err := t.del(ctx, seatPath(c, seatVariantState)); err != nil {
			return err
		}
		if err := t.del(ctx, seatPath(c, seatInactivityCheckpoint)); err != nil {
			return err
		}
	}
	starting := chairs[rand.Intn(len(chairs))]
	if err := t.set(ctx, fieldStarting, starting); err != nil {
		return err
	}
	if err := t.set(ctx, fieldCurrent, starting); err != nil {
		return err
	}
	if err := t.resetShared(ctx); err != nil {
		return err
	}
	if err := t.set(ctx, fieldMoveCheckpoint, t.clock()); err != nil {
		return err
	}
	for _, flag := range []string{fieldDraw, fieldSurrender, fieldEndedByTimeout} {
		if err := t.set(ctx, flag, false); err != nil {
			return err
		}
	}
	if err := t.clearResult(ctx); err != nil {
		return err
	}
	for _, flag := range allFlags {
		if err := t.set(ctx, flag, false); err != nil {
			return err
		}
	}
	if err := v.Setup(ctx, t); err != nil {
		return err
	}
	gamesStarted.WithLabelValues(t.ref.Variant).Inc()
	e.log.Info("game started", zap.Stringer("room", t.ref), zap.String("starting_player", string(starting)))
	return nil
}

// AdvanceTurn passes the turn to the next occupied chair.
func (e *Engine) AdvanceTurn(ctx context.Context, ref Ref) (Chair, error) {
	var next Chair
	err := e.with(ref, func(t *Table) (err error) {
		next, err = t.AdvanceTurn(ctx)
		return
	})
	return next, err
}

// RecordMove flags the board state as changed and runs the clocks. It does
// not check whose turn it is; variants that need strict turns enforce them in
// Play.
func (e *Engine) RecordMove(ctx context.Context, ref Ref, playerID, action, move string) error {
	return e.with(ref, func(t *Table) error {
		return e.recordMove(ctx, t, playerID, action, move)
	})
}

func (e *Engine) recordMove(ctx context.Context, t *Table, playerID, action, move string) error {
	if err := t.mark(ctx, flagStateDirty); err != nil {
		return err
	}
	e.log.Debug("move", zap.Stringer("room", t.ref), zap.String("player", playerID), zap.String("action", action), zap.String("move", move))
	return e.checkTimers(ctx, t)
}

// Play records a move and hands it to the variant. A round the move ends is
// finished. It reports whether the variant accepted the move.
func (e *Engine) Play(ctx context.Context, ref Ref, playerID, action, move string) (bool, error) {
	var accepted bool
	err := e.withVariant(ref, func(t *Table, v Variant) error {
		status, err := t.Status(ctx)
		if err != nil || status != StatusOngoing {
			return err
		}
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		if err := e.recordMove(ctx, t, playerID, action, move); err != nil {
			return err
		}
		if status, err = t.Status(ctx); err != nil || status != StatusOngoing {
			return err
		}
		if accepted, err = v.Play(ctx, t, chair, action, move); err != nil || !accepted {
			return err
		}
		return e.tryFinish(ctx, t, v)
	})
	return accepted, err
}

// TryFinish ends the round if the variant says it is over.
func (e *Engine) TryFinish(ctx context.Context, ref Ref) error {
	return e.withVariant(ref, func(t *Table, v Variant) error {
		return e.tryFinish(ctx, t, v)
	})
}

func (e *Engine) tryFinish(ctx context.Context, t *Table, v Variant) error {
	over, err := v.IsRoundOver(ctx, t)
	if err != nil || !over {
		return err
	}
	draw, err := v.IsDraw(ctx, t)
	if err != nil {
		return err
	}
	if draw {
		return e.draw(ctx, t)
	}
	if err := v.SelectLosers(ctx, t); err != nil {
		return err
	}
	losers, err := v.LosingDisplayNames(ctx, t)
	if err != nil {
		return err
	}
	return e.finish(ctx, t, losers)
}

// Finish ends an ongoing round with the given losers; everyone else wins.
func (e *Engine) Finish(ctx context.Context, ref Ref, losers []string) error {
	return e.with(ref, func(t *Table) error {
		return e.finish(ctx, t, losers)
	})
}

func (e *Engine) finish(ctx context.Context, t *Table, losers []string) error {
	status, err := t.Status(ctx)
	if err != nil || status != StatusOngoing {
		return err
	}
	draw, err := t.getBool(ctx, fieldDraw)
	if err != nil {
		return err
	}
	if !draw {
		if err := t.writeResult(ctx, losers); err != nil {
			return err
		}
	}
	if err := t.setStatus(ctx, StatusFinished); err != nil {
		return err
	}
	if err := t.del(ctx, fieldCurrent); err != nil {
		return err
	}
	if err := t.mark(ctx, flagChanged, flagPendingPush, flagStateDirty); err != nil {
		return err
	}
	cfg, err := t.Config(ctx)
	if err != nil {
		return err
	}
	if cfg.Ranked {
		if err := t.mark(ctx, flagPendingRating); err != nil {
			return err
		}
	}
	reason, err := t.reason(ctx)
	if err != nil {
		return err
	}
	gamesFinished.WithLabelValues(t.ref.Variant, reason).Inc()
	e.log.Info("game finished", zap.Stringer("room", t.ref), zap.String("reason", reason), zap.Strings("losers", losers))
	return e.record(ctx, t)
}

func (t *Table) writeResult(ctx context.Context, losers []string) error {
	if losers == nil {
		losers = []string{}
	}
	if err := t.set(ctx, fieldLosers, losers); err != nil {
		return err
	}
	if err := t.set(ctx, fieldWinners, []string{}); err != nil {
		return err
	}
	seats, err := t.Seats(ctx)
	if err != nil {
		return err
	}
	for _, s := range seats {
		if contains(losers, s.DisplayName) {
			continue
		}
		if _, err := t.st.Append(ctx, t.doc, fieldWinners, mustJSON(s.DisplayName)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, t *Table) error {
	if e.rec == nil {
		return nil
	}
	outcomes, err := t.outcomes(ctx)
	if err != nil {
		return err
	}
	if err := e.rec.RecordOutcomes(ctx, t.ref, outcomes); err != nil {
		return fmt.Errorf("record outcomes of %s: %w", t.ref, err)
	}
	return nil
}

// Surrender ends the round with the player as the only loser.
func (e *Engine) Surrender(ctx context.Context, ref Ref, playerID string) error {
	return e.with(ref, func(t *Table) error {
		status, err := t.Status(ctx)
		if err != nil || status != StatusOngoing {
			return err
		}
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		name, err := t.DisplayName(ctx, chair)
		if err != nil {
			return err
		}
		if err := t.set(ctx, fieldSurrender, true); err != nil {
			return err
		}
		return e.finish(ctx, t, []string{name})
	})
}

// Draw ends the round without winners or losers.
func (e *Engine) Draw(ctx context.Context, ref Ref) error {
	return e.with(ref, func(t *Table) error {
		return e.draw(ctx, t)
	})
}

func (e *Engine) draw(ctx context.Context, t *Table) error {
	status, err := t.Status(ctx)
	if err != nil || status != StatusOngoing {
		return err
	}
	if err := t.set(ctx, fieldDraw, true); err != nil {
		return err
	}
	return e.finish(ctx, t, nil)
}

// Rematch puts a finished room back to waiting. Ready flags are cleared;
// identities and ratings stay.
func (e *Engine) Rematch(ctx context.Context, ref Ref) (bool, error) {
	var ok bool
	err := e.with(ref, func(t *Table) error {
		status, err := t.Status(ctx)
		if err != nil || status != StatusFinished {
			return err
		}
		if err := t.setStatus(ctx, StatusWaiting); err != nil {
			return err
		}
		chairs, err := t.Chairs(ctx)
		if err != nil {
			return err
		}
		for _, c := range chairs {
			if err := t.setSeat(ctx, c, seatReady, false); err != nil {
				return err
			}
		}
		if err := t.clearResult(ctx); err != nil {
			return err
		}
		ok = true
		return t.mark(ctx, flagChanged)
	})
	return ok, err
}
