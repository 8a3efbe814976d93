package razroom

import (
	"context"
	"encoding/json"
	"strings"
)

const maxChatLength = 500

// Room is the RPC receiver of one websocket connection. Its methods are
// exposed to the client as Room.<Method>.
type Room struct {
	hub  *Hub
	ref  Ref
	conn *conn
}

type MoveArgs struct {
	Action string `json:"action"`
	Move   string `json:"move"`
}

type ChatMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

func (r *Room) engine() *Engine {
	return r.hub.engine
}

func (r *Room) player() string {
	return r.conn.player.ID
}

// after pushes the effects of a call to every client in the room.
func (r *Room) after(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	r.hub.Sync(ctx, r.ref)
	return nil
}

// Room.Ready marks the caller (un)ready; the round starts once every seat is
// taken and ready.
func (r *Room) Ready(ready bool, unused *bool) error {
	ctx := context.Background()
	return r.after(ctx, r.engine().SetReady(ctx, r.ref, r.player(), ready))
}

// Room.Active is the client's activity ping.
func (r *Room) Active(active bool, unused *bool) error {
	ctx := context.Background()
	return r.after(ctx, r.engine().SetActive(ctx, r.ref, r.player(), active))
}

// Room.Move plays a move and reports whether it was accepted.
func (r *Room) Move(args *MoveArgs, accepted *bool) error {
	ctx := context.Background()
	ok, err := r.engine().Play(ctx, r.ref, r.player(), args.Action, args.Move)
	*accepted = ok
	return r.after(ctx, err)
}

func (r *Room) Surrender(unused bool, unused2 *bool) error {
	ctx := context.Background()
	return r.after(ctx, r.engine().Surrender(ctx, r.ref, r.player()))
}

// Room.Rematch puts a finished room back to waiting and tells clients to
// clear their table.
func (r *Room) Rematch(unused bool, ok *bool) error {
	ctx := context.Background()
	rematch, err := r.engine().Rematch(ctx, r.ref)
	if err != nil {
		return err
	}
	*ok = rematch
	if rematch {
		r.hub.room(r.ref).broadcast("Room.Reset", true)
	}
	return r.after(ctx, nil)
}

func (r *Room) Info(unused bool, info *RoomInfo) error {
	v, err := r.engine().Info(context.Background(), r.ref)
	if err != nil {
		return err
	}
	*info = *v
	return nil
}

func (r *Room) State(unused bool, state *RoomState) error {
	v, err := r.engine().State(context.Background(), r.ref)
	if err != nil {
		return err
	}
	*state = *v
	return nil
}

// Room.Hand returns the caller's private variant state.
func (r *Room) Hand(unused bool, hand *json.RawMessage) error {
	v, err := r.engine().Hand(context.Background(), r.ref, r.player())
	if err != nil {
		return err
	}
	if v == nil {
		v = json.RawMessage("null")
	}
	*hand = v
	return nil
}

func (r *Room) LegalMoves(unused bool, moves *[]string) error {
	v, err := r.engine().LegalMoves(context.Background(), r.ref, r.player())
	if err != nil {
		return err
	}
	if v == nil {
		v = []string{}
	}
	*moves = v
	return nil
}

// Room.Chat relays a message to everyone in the room.
func (r *Room) Chat(text string, unused *bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runes := []rune(text); len(runes) > maxChatLength {
		text = string(runes[:maxChatLength])
	}
	r.hub.room(r.ref).broadcast("Room.Chat", &ChatMessage{
		From: r.conn.player.Login,
		Text: text,
	})
	return nil
}
