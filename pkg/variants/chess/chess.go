// Package chess plugs standard chess into the room engine. The starting
// player takes white; moves are UCI strings ("e2e4", "e7e8q").
package chess

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/notnil/chess"
	"github.com/razzie/razroom/pkg/razroom"
)

//go:embed schema.json
var schemaJSON []byte

const (
	ParamIncrement = "increment"

	ActionMove = "move"

	sharedFEN    = "fen"
	sharedMoves  = "moves"
	sharedLoser  = "loser"
	sharedColors = "colors"
)

type Variant struct {
	schema razroom.Schema
}

func New() *Variant {
	return &Variant{schema: razroom.MustParseSchema(schemaJSON)}
}

func (v *Variant) Name() string {
	return "chess"
}

func (v *Variant) Schema() razroom.Schema {
	return v.schema
}

type seatState struct {
	Color string `json:"color"`
}

func (v *Variant) Setup(ctx context.Context, t *razroom.Table) error {
	white, ok, err := t.StartingPlayer(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no starting player", t.Ref())
	}
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return err
	}
	colors := make(map[string]razroom.Chair, 2)
	for _, c := range chairs {
		color := "b"
		if c == white {
			color = "w"
		}
		colors[color] = c
		if err := t.SetVariantState(ctx, c, seatState{Color: color}); err != nil {
			return err
		}
	}
	if err := t.SetShared(ctx, sharedColors, colors); err != nil {
		return err
	}
	if err := t.SetShared(ctx, sharedFEN, chess.StartingPosition().String()); err != nil {
		return err
	}
	return t.SetShared(ctx, sharedMoves, []string{})
}

// load replays the round from the starting position.
func load(ctx context.Context, t *razroom.Table) (*chess.Game, error) {
	var fen string
	if _, err := t.Shared(ctx, sharedFEN, &fen); err != nil {
		return nil, err
	}
	var opts []func(*chess.Game)
	if len(fen) > 0 {
		opt, err := chess.FEN(fen)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	game := chess.NewGame(opts...)
	var moves []string
	if _, err := t.Shared(ctx, sharedMoves, &moves); err != nil {
		return nil, err
	}
	for _, m := range moves {
		if !handleMoveStr(game, m) {
			return nil, fmt.Errorf("%s: stored move %q does not replay", t.Ref(), m)
		}
	}
	return game, nil
}

func handleMoveStr(game *chess.Game, moveStr string) bool {
	move, err := chess.UCINotation{}.Decode(game.Position(), moveStr)
	if err != nil {
		return false
	}
	return game.Move(move) == nil
}

func colorOf(ctx context.Context, t *razroom.Table, chair razroom.Chair) (chess.Color, error) {
	var s seatState
	if _, err := t.VariantState(ctx, chair, &s); err != nil {
		return chess.NoColor, err
	}
	switch s.Color {
	case "w":
		return chess.White, nil
	case "b":
		return chess.Black, nil
	}
	return chess.NoColor, nil
}

func (v *Variant) Play(ctx context.Context, t *razroom.Table, chair razroom.Chair, action, move string) (bool, error) {
	if action != ActionMove {
		return false, nil
	}
	game, err := load(ctx, t)
	if err != nil {
		return false, err
	}
	color, err := colorOf(ctx, t, chair)
	if err != nil {
		return false, err
	}
	if color != game.Position().Turn() || game.Outcome() != chess.NoOutcome {
		return false, nil
	}
	if !handleMoveStr(game, move) {
		return false, nil
	}
	if _, err := t.AppendShared(ctx, sharedMoves, move); err != nil {
		return false, err
	}
	cfg, err := t.Config(ctx)
	if err != nil {
		return false, err
	}
	if inc := cfg.Seconds(ParamIncrement); inc > 0 {
		if err := t.AddMoveTime(ctx, chair, inc); err != nil {
			return false, err
		}
	}
	_, err = t.AdvanceTurn(ctx)
	return true, err
}

func (v *Variant) IsRoundOver(ctx context.Context, t *razroom.Table) (bool, error) {
	game, err := load(ctx, t)
	if err != nil {
		return false, err
	}
	return game.Outcome() != chess.NoOutcome, nil
}

func (v *Variant) IsDraw(ctx context.Context, t *razroom.Table) (bool, error) {
	game, err := load(ctx, t)
	if err != nil {
		return false, err
	}
	return game.Outcome() == chess.Draw, nil
}

func (v *Variant) SelectLosers(ctx context.Context, t *razroom.Table) error {
	game, err := load(ctx, t)
	if err != nil {
		return err
	}
	var loser string
	switch game.Outcome() {
	case chess.WhiteWon:
		loser = "b"
	case chess.BlackWon:
		loser = "w"
	default:
		return nil
	}
	return t.SetShared(ctx, sharedLoser, loser)
}

func (v *Variant) LosingDisplayNames(ctx context.Context, t *razroom.Table) ([]string, error) {
	var loser string
	if ok, err := t.Shared(ctx, sharedLoser, &loser); err != nil || !ok {
		return nil, err
	}
	var colors map[string]razroom.Chair
	if _, err := t.Shared(ctx, sharedColors, &colors); err != nil {
		return nil, err
	}
	chair, ok := colors[loser]
	if !ok {
		return nil, nil
	}
	name, err := t.DisplayName(ctx, chair)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (v *Variant) LegalMoves(ctx context.Context, t *razroom.Table, chair razroom.Chair) ([]string, error) {
	game, err := load(ctx, t)
	if err != nil {
		return nil, err
	}
	color, err := colorOf(ctx, t, chair)
	if err != nil || color != game.Position().Turn() {
		return nil, err
	}
	valid := game.ValidMoves()
	moves := make([]string, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, chess.UCINotation{}.Encode(game.Position(), m))
	}
	return moves, nil
}

func (v *Variant) View(ctx context.Context, t *razroom.Table) (any, error) {
	game, err := load(ctx, t)
	if err != nil {
		return nil, err
	}
	var startFEN string
	if _, err := t.Shared(ctx, sharedFEN, &startFEN); err != nil {
		return nil, err
	}
	return newBoard(game, startFEN), nil
}
