package main

import (
	"github.com/razzie/blunder/engine"
)

// castles are the king moves UCI uses for castling.
var castles = map[string]bool{
	"e1g1": true,
	"e1c1": true,
	"e8g8": true,
	"e8c8": true,
}

func square(coord string) uint8 {
	file := coord[0] - 'a'
	rank := coord[1] - '1'
	return rank*8 + file
}

// moveFromCoord decodes a UCI move ("e2e4", "e7e8q") in pos.
func moveFromCoord(pos *engine.Position, move string) engine.Move {
	from, to := square(move[0:2]), square(move[2:4])
	moved := pos.Squares[from].Type

	switch {
	case len(move) == 5:
		flag := engine.NoFlag
		switch move[4] {
		case 'q':
			flag = engine.QueenPromotion
		case 'n':
			flag = engine.KnightPromotion
		case 'b':
			flag = engine.BishopPromotion
		case 'r':
			flag = engine.RookPromotion
		}
		return engine.NewMove(from, to, engine.Promotion, flag)
	case moved == engine.King && castles[move]:
		return engine.NewMove(from, to, engine.Castle, engine.NoFlag)
	case moved == engine.Pawn && to == pos.EPSq:
		return engine.NewMove(from, to, engine.Attack, engine.AttackEP)
	case pos.Squares[to].Type != engine.NoType:
		return engine.NewMove(from, to, engine.Attack, engine.NoFlag)
	}
	return engine.NewMove(from, to, engine.Quiet, engine.NoFlag)
}
