package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/razzie/razroom/pkg/connector"
	"github.com/razzie/razroom/pkg/razroom"
	"github.com/razzie/razroom/pkg/variants/chess"
)

const (
	MaxDepth = 20
	MoveTime = 120000
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: bot [server URL] [room id]")
		os.Exit(1)
	}
	ref := razroom.Ref{Variant: "chess", ID: os.Args[2]}
	id := uuid.NewString()

	conn, err := connector.NewConnection(os.Args[1], ref, razroom.Player{ID: id, Login: "bot-" + id[:8]})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer conn.Close()

	go func() {
		for range time.Tick(razroom.DefaultPingInterval) {
			conn.Active(true)
		}
	}()
	conn.Ready(true)

	bot := NewBot(MoveTime, MaxDepth)
	for state := range conn.C {
		var board chess.Board
		if err := state.DecodeBoard(&board); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if board.Outcome != "*" {
			fmt.Println(board.Outcome, board.Method)
			return
		}
		if state.CurrentPlayer == "" {
			continue
		}
		var hand struct{ Color string }
		if err := conn.Hand(&hand); err != nil || hand.Color != board.Turn {
			continue
		}
		bot.Update(board.StartFEN, board.Moves)
		move := bot.BestMove()
		accepted := conn.Move(chess.ActionMove, move)
		fmt.Println("Found move:", move, ", move accepted:", accepted)
	}
}
