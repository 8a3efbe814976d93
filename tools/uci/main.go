package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
	"github.com/razzie/razroom/pkg/connector"
	"github.com/razzie/razroom/pkg/razroom"
	roomchess "github.com/razzie/razroom/pkg/variants/chess"
)

const (
	MaxDepth = 20
	MoveTime = 30000
)

func main() {
	if len(os.Args) != 4 {
		fmt.Printf("Usage: %s [server URL] [room id] [UCI app path]\n", os.Args[0])
		os.Exit(1)
	}
	ref := razroom.Ref{Variant: "chess", ID: os.Args[2]}
	uciApp := os.Args[3]
	id := uuid.NewString()

	conn, err := connector.NewConnection(os.Args[1], ref, razroom.Player{ID: id, Login: "uci-" + id[:8]})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer conn.Close()

	eng, err := uci.New(uciApp)
	if err != nil {
		fmt.Println("failed to start UCI app:", err)
		os.Exit(1)
	}
	defer eng.Close()

	if err := eng.Run(uci.CmdUCI, uci.CmdIsReady, uci.CmdUCINewGame); err != nil {
		panic(err)
	}

	go func() {
		for range time.Tick(razroom.DefaultPingInterval) {
			conn.Active(true)
		}
	}()
	conn.Ready(true)

	for state := range conn.C {
		var board roomchess.Board
		if err := state.DecodeBoard(&board); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println(board.FEN, "-", board.Outcome)
		if board.Outcome != "*" {
			return
		}
		if state.CurrentPlayer == "" {
			continue
		}
		var hand struct{ Color string }
		if err := conn.Hand(&hand); err != nil || hand.Color != board.Turn {
			continue
		}
		move := getBestMove(eng, &board)
		fmt.Println("Best move:", move)
		if !conn.Move(roomchess.ActionMove, move) {
			fmt.Println("Server rejected the move")
		}
	}
}

func getBestMove(eng *uci.Engine, board *roomchess.Board) string {
	var opts []func(*chess.Game)
	if len(board.StartFEN) > 0 {
		opt, err := chess.FEN(board.StartFEN)
		if err != nil {
			panic(err)
		}
		opts = append(opts, opt)
	}
	game := chess.NewGame(opts...)
	for _, m := range board.Moves {
		move, err := chess.UCINotation{}.Decode(game.Position(), m)
		if err != nil {
			panic(err)
		}
		if err := game.Move(move); err != nil {
			panic(err)
		}
	}
	cmdPos := uci.CmdPosition{Position: game.Position()}
	cmdGo := uci.CmdGo{
		MoveTime: time.Millisecond * MoveTime,
		Depth:    MaxDepth,
	}
	if err := eng.Run(cmdPos, cmdGo); err != nil {
		panic(err)
	}
	move := eng.SearchResults().BestMove
	return chess.UCINotation{}.Encode(game.Position(), move)
}
