package razroom

import (
	"context"
)

type Outcome int

const (
	OutcomeWin Outcome = iota
	OutcomeDraw
	OutcomeLose
	OutcomeWinByDisconnect
	OutcomeLoseByDisconnect
	OutcomeInProgress
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "WIN"
	case OutcomeDraw:
		return "DRAW"
	case OutcomeLose:
		return "LOSE"
	case OutcomeWinByDisconnect:
		return "WIN_BY_DISCONNECT"
	case OutcomeLoseByDisconnect:
		return "LOSE_BY_DISCONNECT"
	case OutcomeInProgress:
		return "IN_PROGRESS"
	}
	return "UNKNOWN"
}

// Participation is the outcome of one seat at the end of a round.
type Participation struct {
	PlayerID    string
	DisplayName string
	Outcome     Outcome
}

// Recorder persists round outcomes. It is called once per finished round.
type Recorder interface {
	RecordOutcomes(ctx context.Context, ref Ref, outcomes []Participation) error
}

type RecorderFunc func(ctx context.Context, ref Ref, outcomes []Participation) error

func (f RecorderFunc) RecordOutcomes(ctx context.Context, ref Ref, outcomes []Participation) error {
	return f(ctx, ref, outcomes)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// outcomes maps every seat to its outcome from the stored result.
func (t *Table) outcomes(ctx context.Context) ([]Participation, error) {
	seats, err := t.Seats(ctx)
	if err != nil {
		return nil, err
	}
	draw, err := t.getBool(ctx, fieldDraw)
	if err != nil {
		return nil, err
	}
	byTimeout, err := t.getBool(ctx, fieldEndedByTimeout)
	if err != nil {
		return nil, err
	}
	winners, losers, err := t.result(ctx)
	if err != nil {
		return nil, err
	}
	win, lose := OutcomeWin, OutcomeLose
	if byTimeout {
		win, lose = OutcomeWinByDisconnect, OutcomeLoseByDisconnect
	}
	out := make([]Participation, 0, len(seats))
	for _, s := range seats {
		p := Participation{PlayerID: s.PlayerID, DisplayName: s.DisplayName, Outcome: OutcomeInProgress}
		switch {
		case draw:
			p.Outcome = OutcomeDraw
		case contains(winners, s.DisplayName):
			p.Outcome = win
		case contains(losers, s.DisplayName):
			p.Outcome = lose
		}
		out = append(out, p)
	}
	return out, nil
}
