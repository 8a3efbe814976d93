// Package connector is a client for razroom rooms served over websocket
// JSON-RPC. Bots use it to sit at a table.
package connector

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/razzie/jsonrpc"
	"github.com/razzie/razroom/pkg/razroom"
	"golang.org/x/net/websocket"
)

// State is a room state push. Board is left raw for the variant's own view
// type.
type State struct {
	CurrentPlayer razroom.Chair         `json:"current_player"`
	Players       []razroom.PlayerState `json:"players"`
	Board         json.RawMessage       `json:"board"`
}

// DecodeBoard unmarshals the variant view, e.g. into a *chess.Board.
func (s *State) DecodeBoard(v any) error {
	return json.Unmarshal(s.Board, v)
}

type Connection struct {
	ws      io.Closer
	client  *jsonrpc.JsonRPC
	states  chan *State
	C       <-chan *State
	State   atomic.Pointer[State]
	Info    atomic.Pointer[razroom.RoomInfo]
	Scores  atomic.Pointer[razroom.Report]
	OnChat  func(*razroom.ChatMessage)
	OnReset func()
}

// RoomURL builds the websocket URL of a room from the server's base URL.
func RoomURL(serverURL string, ref razroom.Ref, p razroom.Player) string {
	base := strings.NewReplacer("http://", "ws://", "https://", "wss://").Replace(strings.TrimSuffix(serverURL, "/"))
	q := url.Values{}
	if p.ID != "" {
		q.Set("id", p.ID)
	}
	if p.Login != "" {
		q.Set("login", p.Login)
	}
	u := base + "/ws/" + ref.Variant + "/" + ref.ID
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func NewConnection(serverURL string, ref razroom.Ref, p razroom.Player) (*Connection, error) {
	wsURL := RoomURL(serverURL, ref, p)
	ws, err := websocket.Dial(wsURL, "", wsURL)
	if err != nil {
		return nil, err
	}
	conn := &Connection{
		ws:     ws,
		client: jsonrpc.NewJsonRpc(ws),
		states: make(chan *State),
	}
	conn.C = conn.states
	conn.client.Register(&Room{conn: conn}, "")
	go conn.client.Serve()
	return conn, nil
}

func (conn *Connection) Ready(ready bool) {
	conn.client.Notify("Room.Ready", ready)
}

func (conn *Connection) Active(active bool) {
	conn.client.Notify("Room.Active", active)
}

func (conn *Connection) Move(action, move string) (accepted bool) {
	conn.client.Call("Room.Move", &razroom.MoveArgs{Action: action, Move: move}, &accepted)
	return
}

func (conn *Connection) Surrender() {
	conn.client.Notify("Room.Surrender", true)
}

func (conn *Connection) Rematch() (ok bool) {
	conn.client.Call("Room.Rematch", true, &ok)
	return
}

func (conn *Connection) Hand(v any) error {
	var raw json.RawMessage
	conn.client.Call("Room.Hand", true, &raw)
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}

func (conn *Connection) LegalMoves() (moves []string) {
	conn.client.Call("Room.LegalMoves", true, &moves)
	return
}

func (conn *Connection) Chat(text string) {
	conn.client.Notify("Room.Chat", text)
}

func (conn *Connection) Close() error {
	return conn.ws.Close()
}

func (conn *Connection) update(state *State) {
	conn.State.Store(state)
	go func() {
		conn.states <- state
	}()
}
