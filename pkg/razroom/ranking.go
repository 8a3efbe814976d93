package razroom

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Authority is the external system of record for ratings.
type Authority interface {
	// RequestRatings asks for the current ratings of players; answers arrive
	// later through Engine.ApplyRatingUpdate.
	RequestRatings(ctx context.Context, ref Ref, playerIDs []string) error
	ReportResult(ctx context.Context, ref Ref, report *Report) error
}

const (
	ReasonTimeout   = "timeout"
	ReasonDraw      = "draw"
	ReasonSurrender = "surrender"
	ReasonFinish    = "finish"
)

// Report is the outcome of a finished round.
type Report struct {
	Room    Ref         `json:"room"`
	Ranked  bool        `json:"ranked"`
	Winners []string    `json:"winners"`
	Losers  []string    `json:"losers"`
	Reason  string      `json:"reason"`
	Players []ScoreLine `json:"players"`
}

type ScoreLine struct {
	PlayerID    string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       string  `json:"score"`
	Points      int     `json:"points"`
	Rating      float64 `json:"rating"`
	Left        bool    `json:"left"`
	TimeSec     int     `json:"time_sec"`
}

// ProvisionalDelta estimates the rating change of a player scoring score
// (1 win, 0.5 draw, 0 loss) against every opponent at once: the expected
// scores against each opponent are averaged and the difference is scaled by k.
// It is informational; ratings only change through ApplyRatingUpdate.
func ProvisionalDelta(own float64, opponents []float64, score, k float64) int {
	if len(opponents) == 0 {
		return 0
	}
	var expected float64
	for _, r := range opponents {
		expected += 1 / (1 + math.Pow(10, (r-own)/400))
	}
	expected /= float64(len(opponents))
	return int(math.Round(k * (score - expected)))
}

func scoreValue(score string) float64 {
	switch score {
	case "win":
		return 1
	case "draw":
		return 0.5
	}
	return 0
}

func (t *Table) reason(ctx context.Context) (string, error) {
	for _, r := range []struct {
		field, reason string
	}{
		{fieldEndedByTimeout, ReasonTimeout},
		{fieldDraw, ReasonDraw},
		{fieldSurrender, ReasonSurrender},
	} {
		set, err := t.getBool(ctx, r.field)
		if err != nil {
			return "", err
		}
		if set {
			return r.reason, nil
		}
	}
	return ReasonFinish, nil
}

// Scores builds the report of a finished round. Unfinished rooms yield nil.
func (e *Engine) Scores(ctx context.Context, ref Ref) (*Report, error) {
	var r *Report
	err := e.with(ref, func(t *Table) (err error) {
		r, err = e.scores(ctx, t)
		return
	})
	return r, err
}

func (e *Engine) scores(ctx context.Context, t *Table) (*Report, error) {
	status, err := t.Status(ctx)
	if err != nil || status != StatusFinished {
		return nil, err
	}
	cfg, err := t.Config(ctx)
	if err != nil {
		return nil, err
	}
	winners, losers, err := t.result(ctx)
	if err != nil {
		return nil, err
	}
	reason, err := t.reason(ctx)
	if err != nil {
		return nil, err
	}
	seats, err := t.Seats(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Room:    t.ref,
		Ranked:  cfg.Ranked,
		Winners: winners,
		Losers:  losers,
		Reason:  reason,
	}
	for i, s := range seats {
		score := "lose"
		switch {
		case reason == ReasonDraw:
			score = "draw"
		case contains(winners, s.DisplayName):
			score = "win"
		}
		opponents := make([]float64, 0, len(seats)-1)
		for j, o := range seats {
			if j != i {
				opponents = append(opponents, o.Rating)
			}
		}
		r.Players = append(r.Players, ScoreLine{
			PlayerID:    s.PlayerID,
			DisplayName: s.DisplayName,
			Score:       score,
			Points:      ProvisionalDelta(s.Rating, opponents, scoreValue(score), e.kFactor),
			Rating:      s.Rating,
			Left:        s.Timeout <= 0,
			TimeSec:     int(max(cfg.TimePerPlayer.Seconds()-s.MoveTime, 0)),
		})
	}
	return r, nil
}

// ApplyRatingUpdate adds the awarded points to each seated player's rating.
// Delivering the same update twice counts it twice. Updates for rooms that
// no longer exist are dropped.
func (e *Engine) ApplyRatingUpdate(ctx context.Context, ref Ref, points map[string]float64) error {
	return e.with(ref, func(t *Table) error {
		if ok, err := t.exists(ctx); err != nil || !ok {
			return err
		}
		for playerID, delta := range points {
			chair, ok, err := t.chairOf(ctx, playerID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, err := t.incrSeat(ctx, chair, seatRating, delta); err != nil {
				return err
			}
		}
		return t.mark(ctx, flagChanged)
	})
}

// RequestRating asks the authority for the players' ratings.
func (e *Engine) RequestRating(ctx context.Context, ref Ref, playerIDs ...string) error {
	if e.auth == nil || len(playerIDs) == 0 {
		return nil
	}
	if err := e.auth.RequestRatings(ctx, ref, playerIDs); err != nil {
		return fmt.Errorf("request ratings for %s: %w", ref, err)
	}
	return nil
}

// ReportResult hands a pending result to the authority. It reports whether a
// result was pending; a failed report is flagged pending again.
func (e *Engine) ReportResult(ctx context.Context, ref Ref) (bool, error) {
	if e.auth == nil {
		return false, nil
	}
	var report *Report
	err := e.with(ref, func(t *Table) error {
		pending, err := t.consume(ctx, flagPendingRating)
		if err != nil || !pending {
			return err
		}
		report, err = e.scores(ctx, t)
		return err
	})
	if err != nil || report == nil {
		return false, err
	}
	if err := e.auth.ReportResult(ctx, ref, report); err != nil {
		e.log.Warn("rating report failed", zap.Stringer("room", ref), zap.Error(err))
		return true, multierr.Append(err, e.SetScoresPendingRating(ctx, ref, true))
	}
	return true, nil
}
