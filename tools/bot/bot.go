package main

import (
	"math"

	"github.com/notnil/chess"
	"github.com/razzie/blunder/engine"
)

func init() {
	engine.InitBitboards()
	engine.InitTables()
	engine.InitZobrist()
	engine.InitEvalBitboards()
	engine.InitSearchTables()
}

type Bot struct {
	search engine.Search
	setup  bool
	moves  int
}

func NewBot(moveTime int64, maxDepth uint8) *Bot {
	bot := &Bot{}
	bot.search.TT.Resize(engine.DefaultTTSize, engine.SearchEntrySize)
	timeLeft, increment, movesToGo, maxNodeCount := engine.InfiniteTime, engine.NoValue, int16(engine.NoValue), uint64(math.MaxUint64)
	bot.search.Timer.Setup(
		timeLeft,
		increment,
		moveTime,
		movesToGo,
		maxDepth,
		maxNodeCount,
	)
	return bot
}

// Update replays the moves not seen yet. An empty startFEN is the standard
// starting position.
func (bot *Bot) Update(startFEN string, moves []string) {
	if len(moves) < bot.moves {
		bot.setup = false
	}
	if !bot.setup {
		if len(startFEN) == 0 {
			startFEN = chess.StartingPosition().String()
		}
		bot.search.Setup(startFEN)
		bot.moves = 0
		bot.setup = true
	}
	for _, move := range moves[bot.moves:] {
		bot.search.Pos.DoMove(moveFromCoord(&bot.search.Pos, move))
		bot.search.AddHistory(bot.search.Pos.Hash)
		bot.search.Pos.StatePly--
	}
	bot.moves = len(moves)
}

func (bot *Bot) BestMove() string {
	return bot.search.Search().String()
}
