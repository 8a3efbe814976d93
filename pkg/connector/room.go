package connector

import (
	"github.com/razzie/razroom/pkg/razroom"
)

// Room receives the server's Room.* notifications.
type Room struct {
	conn *Connection
}

func (r *Room) Info(info *razroom.RoomInfo, unused *bool) error {
	r.conn.Info.Store(info)
	return nil
}

func (r *Room) State(state *State, unused *bool) error {
	r.conn.update(state)
	return nil
}

func (r *Room) Scores(report *razroom.Report, unused *bool) error {
	r.conn.Scores.Store(report)
	return nil
}

func (r *Room) Chat(msg *razroom.ChatMessage, unused *bool) error {
	if r.conn.OnChat != nil {
		r.conn.OnChat(msg)
	}
	return nil
}

func (r *Room) Reset(unused bool, unused2 *bool) error {
	r.conn.Scores.Store(nil)
	if r.conn.OnReset != nil {
		r.conn.OnReset()
	}
	return nil
}
