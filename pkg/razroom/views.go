package razroom

import (
	"context"
	"encoding/json"
	"math"
)

type RoomInfo struct {
	Players    []PlayerInfo `json:"players"`
	MaxPlayers int          `json:"max_players"`
	Status     Status       `json:"status"`
}

type PlayerInfo struct {
	Position    Chair   `json:"position"`
	DisplayName string  `json:"display_name"`
	Rating      float64 `json:"rating"`
	Ready       bool    `json:"ready"`
	Active      bool    `json:"active"`
}

// Info describes who sits where. A player missing up to the borderline
// number of pings is still shown as active.
func (e *Engine) Info(ctx context.Context, ref Ref) (*RoomInfo, error) {
	var info *RoomInfo
	err := e.with(ref, func(t *Table) error {
		cfg, err := t.Config(ctx)
		if err != nil {
			return err
		}
		status, err := t.Status(ctx)
		if err != nil {
			return err
		}
		seats, err := t.Seats(ctx)
		if err != nil {
			return err
		}
		info = &RoomInfo{
			Players:    make([]PlayerInfo, 0, len(seats)),
			MaxPlayers: cfg.MaxPlayers,
			Status:     status,
		}
		for _, s := range seats {
			info.Players = append(info.Players, PlayerInfo{
				Position:    s.Chair,
				DisplayName: s.DisplayName,
				Rating:      s.Rating,
				Ready:       s.Ready,
				Active:      s.InactivePings <= borderlinePings,
			})
		}
		return nil
	})
	return info, err
}

type RoomState struct {
	CurrentPlayer Chair         `json:"current_player,omitempty"`
	Players       []PlayerState `json:"players"`
	Board         any           `json:"board,omitempty"`
}

type PlayerState struct {
	Position Chair `json:"position"`
	Time     int   `json:"time"`
	Points   int   `json:"points"`
}

// State describes the round: whose turn it is, the clocks and the public
// part of the variant state.
func (e *Engine) State(ctx context.Context, ref Ref) (*RoomState, error) {
	var state *RoomState
	err := e.withVariant(ref, func(t *Table, v Variant) error {
		seats, err := t.Seats(ctx)
		if err != nil {
			return err
		}
		cur, _, err := t.CurrentPlayer(ctx)
		if err != nil {
			return err
		}
		state = &RoomState{
			CurrentPlayer: cur,
			Players:       make([]PlayerState, 0, len(seats)),
		}
		for _, s := range seats {
			state.Players = append(state.Players, PlayerState{
				Position: s.Chair,
				Time:     int(math.Ceil(s.MoveTime)),
				Points:   s.Points,
			})
		}
		if viewer, ok := v.(Viewer); ok {
			if state.Board, err = viewer.View(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	return state, err
}

// Hand returns the player's private variant state, or nil when not seated.
func (e *Engine) Hand(ctx context.Context, ref Ref, playerID string) (json.RawMessage, error) {
	var hand json.RawMessage
	err := e.with(ref, func(t *Table) error {
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		hand, err = t.RawVariantState(ctx, chair)
		return err
	})
	return hand, err
}

// LegalMoves lists the moves the variant would accept from the player.
func (e *Engine) LegalMoves(ctx context.Context, ref Ref, playerID string) ([]string, error) {
	var moves []string
	err := e.withVariant(ref, func(t *Table, v Variant) error {
		status, err := t.Status(ctx)
		if err != nil || status != StatusOngoing {
			return err
		}
		chair, ok, err := t.chairOf(ctx, playerID)
		if err != nil || !ok {
			return err
		}
		moves, err = v.LegalMoves(ctx, t, chair)
		return err
	})
	return moves, err
}

// Seats returns a snapshot of every occupied chair.
func (e *Engine) Seats(ctx context.Context, ref Ref) ([]*Seat, error) {
	var seats []*Seat
	err := e.with(ref, func(t *Table) (err error) {
		seats, err = t.Seats(ctx)
		return
	})
	return seats, err
}

// Status returns the room's status, empty when the room does not exist.
func (e *Engine) Status(ctx context.Context, ref Ref) (Status, error) {
	var status Status
	err := e.with(ref, func(t *Table) (err error) {
		status, err = t.Status(ctx)
		return
	})
	return status, err
}

// CurrentPlayer returns the chair to move while the round is ongoing.
func (e *Engine) CurrentPlayer(ctx context.Context, ref Ref) (Chair, bool, error) {
	var (
		chair Chair
		ok    bool
	)
	err := e.with(ref, func(t *Table) (err error) {
		chair, ok, err = t.CurrentPlayer(ctx)
		return
	})
	return chair, ok, err
}

// Result returns the display names of the round's winners and losers.
func (e *Engine) Result(ctx context.Context, ref Ref) (winners, losers []string, err error) {
	err = e.with(ref, func(t *Table) (err error) {
		winners, losers, err = t.result(ctx)
		return
	})
	return
}
