package razroom

import (
	"context"

	"go.uber.org/zap"
)

const (
	// borderlinePings is the largest ping count still shown as active.
	borderlinePings = 2
	// evictPings forces a leave.
	evictPings = 5
)

// Player is the identity a connection joins a room with.
type Player struct {
	ID     string
	Login  string
	Rating float64
}

// Join seats p in the lowest free chair of a waiting room, or marks an
// already seated player active again. It reports false when the room is full
// or no longer accepts players.
func (e *Engine) Join(ctx context.Context, ref Ref, p Player) (bool, error) {
	var joined bool
	err := e.with(ref, func(t *Table) error {
		chair, seated, err := t.chairOf(ctx, p.ID)
		if err != nil {
			return err
		}
		if seated {
			joined = true
			return t.markActive(ctx, chair)
		}
		status, err := t.Status(ctx)
		if err != nil || status != StatusWaiting {
			return err
		}
		chair, free, err := t.firstFreeChair(ctx)
		if err != nil || !free {
			return err
		}
		if err := t.seat(ctx, chair, p); err != nil {
			return err
		}
		joined = true
		e.log.Debug("player joined", zap.Stringer("room", ref), zap.String("player", p.ID), zap.String("chair", string(chair)))
		return nil
	})
	return joined, err
}

func (t *Table) seat(ctx context.Context, c Chair, p Player) error {
	fields := []struct {
		name  string
		value any
	}{
		{seatLogin, p.Login},
		{seatDisplayName, p.Login},
		{seatRating, p.Rating},
		{seatReady, false},
		{seatActive, true},
		{seatInactivePings, 0},
	}
	for _, f := range fields {
		if err := t.setSeat(ctx, c, f.name, f.value); err != nil {
			return err
		}
	}
	// the id goes last: it is what marks the chair occupied
	return t.setSeat(ctx, c, seatID, p.ID)
}

func (t *Table) markActive(ctx context.Context, c Chair) error {
	if err := t.setSeat(ctx, c, seatActive, true); err != nil {
		return err
	}
	return t.setSeat(ctx, c, seatInactivePings, 0)
}

// Leave removes the player's seat from a waiting or finished room. In an
// ongoing round the seat is kept but flagged inactive, and its inactivity
// budget starts draining.
func (e *Engine) Leave(ctx context.Context, ref Ref, playerID string) error {
	return e.with(ref, func(t *Table) error {
		return e.leave(ctx, t, playerID)
	})
}

func (e *Engine) leave(ctx context.Context, t *Table, playerID string) error {
	chair, ok, err := t.chairOf(ctx, playerID)
	if err != nil || !ok {
		return err
	}
	status, err := t.Status(ctx)
	if err != nil {
		return err
	}
	switch status {
	case StatusWaiting, StatusFinished:
		if err := t.del(ctx, seatPath(chair, "")); err != nil {
			return err
		}
		e.log.Debug("player left", zap.Stringer("room", t.ref), zap.String("player", playerID))
	case StatusOngoing:
		if err := t.setSeat(ctx, chair, seatActive, false); err != nil {
			return err
		}
		if err := t.startInactivity(ctx, chair); err != nil {
			return err
		}
		e.log.Debug("player disconnected", zap.Stringer("room", t.ref), zap.String("player", playerID))
	}
	return t.mark(ctx, flagChanged)
}

// startInactivity raises the seat to the borderline ping count and starts its
// inactivity checkpoint, unless the checkpoint is already running.
func (t *Table) startInactivity(ctx context.Context, c Chair) error {
	pings, _, err := getField[int](ctx, t, seatPath(c, seatInactivePings))
	if err != nil {
		return err
	}
	running, err := t.st.Exists(ctx, t.doc, seatPath(c, seatInactivityCheckpoint))
	if err != nil {
		return err
	}
	if pings > borderlinePings && running {
		return nil
	}
	if pings <= borderlinePings {
		if err := t.setSeat(ctx, c, seatInactivePings, borderlinePings+1); err != nil {
			return err
		}
	}
	return t.setSeat(ctx, c, seatInactivityCheckpoint, t.clock())
}

// SetReady only applies boolean values.
func (e *Engine) SetReady(ctx context.Context, ref Ref, playerID string, value any) error {
	ready, ok := value.(bool)
	if !ok {
		return nil
	}
	return e.with(ref, func(t *Table) error {
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		if err := t.setSeat(ctx, chair, seatReady, ready); err != nil {
			return err
		}
		return t.mark(ctx, flagChanged)
	})
}

// SetActive records an activity ping. Missed pings escalate: past the
// borderline count the seat's inactivity budget drains, and at evictPings the
// player is made to leave.
func (e *Engine) SetActive(ctx context.Context, ref Ref, playerID string, value any) error {
	active, ok := value.(bool)
	if !ok {
		return nil
	}
	return e.with(ref, func(t *Table) error {
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		if err := t.setSeat(ctx, chair, seatActive, active); err != nil {
			return err
		}
		if active {
			return t.setSeat(ctx, chair, seatInactivePings, 0)
		}
		n, err := t.incrSeat(ctx, chair, seatInactivePings, 1)
		if err != nil {
			return err
		}
		pings := int(n)
		if pings == borderlinePings+1 {
			if err := t.setSeat(ctx, chair, seatInactivityCheckpoint, t.clock()); err != nil {
				return err
			}
		}
		switch {
		case pings == evictPings:
			seatsEvicted.Inc()
			return e.leave(ctx, t, playerID)
		case pings > evictPings:
			if err := t.mark(ctx, flagChanged); err != nil {
				return err
			}
			status, err := t.Status(ctx)
			if err != nil || status == StatusOngoing {
				return err
			}
			return e.leave(ctx, t, playerID)
		}
		return nil
	})
}

// SetDisplayName changes the name results are attributed to.
func (e *Engine) SetDisplayName(ctx context.Context, ref Ref, playerID, name string) error {
	return e.with(ref, func(t *Table) error {
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		if err := t.setSeat(ctx, chair, seatDisplayName, name); err != nil {
			return err
		}
		return t.mark(ctx, flagChanged)
	})
}
