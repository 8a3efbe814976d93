package chess

import (
	"github.com/notnil/chess"
)

type Move [2]string

// Board is the public view of a chess round.
type Board struct {
	FEN       string   `json:"fen"`
	StartFEN  string   `json:"start_fen"`
	Moves     []string `json:"moves"`
	Turn      string   `json:"turn"`
	Outcome   string   `json:"outcome"`
	Method    string   `json:"method,omitempty"`
	WhiteMove Move     `json:"wm"`
	BlackMove Move     `json:"bm"`
}

func newBoard(game *chess.Game, startFEN string) *Board {
	b := &Board{
		FEN:      game.FEN(),
		StartFEN: startFEN,
		Turn:     game.Position().Turn().String(),
		Outcome:  string(game.Outcome()),
	}
	if game.Outcome() != chess.NoOutcome {
		b.Method = game.Method().String()
	}
	moves := game.Moves()
	positions := game.Positions()
	b.Moves = make([]string, 0, len(moves))
	for i, m := range moves {
		b.Moves = append(b.Moves, chess.UCINotation{}.Encode(positions[i], m))
	}
	count := len(moves)
	if count > 1 {
		b.setMove(moves[count-1], positions[count-1])
		b.setMove(moves[count-2], positions[count-2])
	} else if count > 0 {
		b.setMove(moves[count-1], positions[count-1])
	}
	return b
}

func (b *Board) setMove(move *chess.Move, pos *chess.Position) {
	if pos.Board().Piece(move.S1()).Color() == chess.White {
		b.WhiteMove[0] = move.S1().String()
		b.WhiteMove[1] = move.S2().String()
	} else {
		b.BlackMove[0] = move.S1().String()
		b.BlackMove[1] = move.S2().String()
	}
}
