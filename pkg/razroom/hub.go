package razroom

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/razzie/jsonrpc"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const (
	DefaultKillTimeout  = time.Hour
	DefaultPingInterval = 5 * time.Second
	DefaultRating       = 1500
)

// Hub serves rooms to websocket clients and pushes room changes to them.
// Changes are discovered by polling the dirty flags after every call and on
// every tick.
type Hub struct {
	engine        *Engine
	log           *zap.Logger
	killTimeout   time.Duration
	pingInterval  time.Duration
	defaultRating float64
	rooms         sync.Map
}

type HubOption func(*Hub)

func WithHubLogger(log *zap.Logger) HubOption {
	return func(h *Hub) {
		h.log = log
	}
}

// WithKillTimeout sets how long a room without connections is kept.
func WithKillTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.killTimeout = d
		}
	}
}

func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

func WithDefaultRating(r float64) HubOption {
	return func(h *Hub) {
		h.defaultRating = r
	}
}

func NewHub(e *Engine, opts ...HubOption) *Hub {
	h := &Hub{
		engine:        e,
		log:           zap.NewNop(),
		killTimeout:   DefaultKillTimeout,
		pingInterval:  DefaultPingInterval,
		defaultRating: DefaultRating,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type conn struct {
	id     string
	player Player
	notify func(method string, params any)
}

type roomConns struct {
	ref       Ref
	mtx       sync.Mutex
	conns     map[string]*conn
	killTimer *time.Timer
}

func (h *Hub) room(ref Ref) *roomConns {
	if rc, ok := h.rooms.Load(ref.doc()); ok {
		return rc.(*roomConns)
	}
	rc := &roomConns{ref: ref, conns: make(map[string]*conn)}
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	actual, loaded := h.rooms.LoadOrStore(ref.doc(), rc)
	if !loaded {
		rc.killTimer = time.AfterFunc(h.killTimeout, func() {
			h.expire(ref)
		})
	}
	return actual.(*roomConns)
}

func (rc *roomConns) add(c *conn) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	rc.conns[c.id] = c
	rc.killTimer.Stop()
}

func (rc *roomConns) remove(c *conn, killTimeout time.Duration) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	delete(rc.conns, c.id)
	if len(rc.conns) == 0 {
		rc.killTimer.Reset(killTimeout)
	}
}

func (rc *roomConns) snapshot() []*conn {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	conns := make([]*conn, 0, len(rc.conns))
	for _, c := range rc.conns {
		conns = append(conns, c)
	}
	return conns
}

func (rc *roomConns) connected(playerID string) bool {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	for _, c := range rc.conns {
		if c.player.ID == playerID {
			return true
		}
	}
	return false
}

func (rc *roomConns) broadcast(method string, params any) {
	for _, c := range rc.snapshot() {
		c.notify(method, params)
	}
}

// expire drops a room nobody is connected to. Rooms with a round still
// running are given another kill timeout.
func (h *Hub) expire(ref Ref) {
	v, ok := h.rooms.Load(ref.doc())
	if !ok {
		return
	}
	rc := v.(*roomConns)
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	if len(rc.conns) > 0 {
		return
	}
	ctx := context.Background()
	reaped, err := h.engine.Reap(ctx, ref)
	if err != nil {
		h.log.Error("reaping room", zap.Stringer("room", ref), zap.Error(err))
	}
	exists, err := h.engine.Exists(ctx, ref)
	if err != nil {
		h.log.Error("reaping room", zap.Stringer("room", ref), zap.Error(err))
	}
	if reaped || (err == nil && !exists) {
		h.rooms.Delete(ref.doc())
		return
	}
	rc.killTimer.Reset(h.killTimeout)
}

// ServeRPC upgrades the request to a websocket and serves the Room RPC
// methods to player p until the connection ends.
func (h *Hub) ServeRPC(w http.ResponseWriter, r *http.Request, ref Ref, p Player) {
	exists, err := h.engine.Exists(r.Context(), ref)
	if err != nil {
		h.log.Error("room lookup", zap.Stringer("room", ref), zap.Error(err))
		http.Error(w, "room lookup failed", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Login == "" {
		p.Login = p.ID
	}
	if p.Rating == 0 {
		p.Rating = h.defaultRating
	}
	websocket.Handler(func(ws *websocket.Conn) {
		h.serve(ws, ref, p)
	}).ServeHTTP(w, r)
}

func (h *Hub) serve(ws *websocket.Conn, ref Ref, p Player) {
	ctx := context.Background()
	client := jsonrpc.NewJsonRpc(ws)
	c := &conn{
		id:     uuid.NewString(),
		player: p,
		notify: func(method string, params any) {
			client.Notify(method, params)
		},
	}
	client.Register(&Room{hub: h, ref: ref, conn: c}, "")

	seated, err := h.engine.Join(ctx, ref, p)
	if err != nil {
		h.log.Error("joining room", zap.Stringer("room", ref), zap.String("player", p.ID), zap.Error(err))
	}
	rc := h.room(ref)
	rc.add(c)
	connections.Inc()
	h.log.Debug("client connected", zap.Stringer("room", ref), zap.String("conn", c.id), zap.Bool("seated", seated))

	if seated {
		if err := h.engine.RequestRating(ctx, ref, p.ID); err != nil {
			h.log.Warn("rating request failed", zap.Error(err))
		}
	}
	h.greet(ctx, ref, c, seated)
	client.Serve()

	rc.remove(c, h.killTimeout)
	connections.Dec()
	if seated && !rc.connected(p.ID) {
		if err := h.engine.Leave(ctx, ref, p.ID); err != nil {
			h.log.Error("leaving room", zap.Stringer("room", ref), zap.String("player", p.ID), zap.Error(err))
		}
	}
	h.log.Debug("client disconnected", zap.Stringer("room", ref), zap.String("conn", c.id))
	h.Sync(ctx, ref)
}

// greet sends the current room to a new connection. A newly seated player
// is announced to everyone.
func (h *Hub) greet(ctx context.Context, ref Ref, c *conn, seated bool) {
	info, err := h.engine.Info(ctx, ref)
	if err != nil {
		h.log.Error("room info", zap.Stringer("room", ref), zap.Error(err))
		return
	}
	if seated {
		h.room(ref).broadcast("Room.Info", info)
	} else {
		c.notify("Room.Info", info)
	}
	state, err := h.engine.State(ctx, ref)
	if err != nil {
		h.log.Error("room state", zap.Stringer("room", ref), zap.Error(err))
		return
	}
	c.notify("Room.State", state)
	h.Sync(ctx, ref)
}

// Sync runs the room's clocks, starts a round once everybody is ready and
// pushes whatever the dirty flags report.
func (h *Hub) Sync(ctx context.Context, ref Ref) {
	if err := h.sync(ctx, ref); err != nil {
		h.log.Error("room sync", zap.Stringer("room", ref), zap.Error(err))
	}
}

func (h *Hub) sync(ctx context.Context, ref Ref) error {
	if err := h.engine.CheckTimers(ctx, ref); err != nil {
		return err
	}
	started, err := h.engine.StartWaiting(ctx, ref)
	if err != nil {
		return err
	}
	rc := h.room(ref)

	changed, err := h.engine.ConsumeChanged(ctx, ref)
	if err != nil {
		return err
	}
	if changed || started {
		info, err := h.engine.Info(ctx, ref)
		if err != nil {
			return err
		}
		rc.broadcast("Room.Info", info)
	}

	dirty, err := h.engine.ConsumeStateDirty(ctx, ref)
	if err != nil {
		return err
	}
	if dirty || started {
		state, err := h.engine.State(ctx, ref)
		if err != nil {
			return err
		}
		rc.broadcast("Room.State", state)
	}

	push, err := h.engine.ConsumeScoresPendingPush(ctx, ref)
	if err != nil {
		return err
	}
	if push {
		scores, err := h.engine.Scores(ctx, ref)
		if err != nil {
			return err
		}
		if scores != nil {
			rc.broadcast("Room.Scores", scores)
		}
	}

	_, err = h.engine.ReportResult(ctx, ref)
	return err
}

// tick reports seated players without a live connection as inactive, then
// syncs the room.
func (h *Hub) tick(ctx context.Context, rc *roomConns) {
	seats, err := h.engine.Seats(ctx, rc.ref)
	if err != nil {
		h.log.Error("room tick", zap.Stringer("room", rc.ref), zap.Error(err))
		return
	}
	for _, s := range seats {
		if rc.connected(s.PlayerID) {
			continue
		}
		if err := h.engine.SetActive(ctx, rc.ref, s.PlayerID, false); err != nil {
			h.log.Error("room tick", zap.Stringer("room", rc.ref), zap.Error(err))
		}
	}
	h.Sync(ctx, rc.ref)
}

// Run ticks every room until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.rooms.Range(func(_, v any) bool {
				h.tick(ctx, v.(*roomConns))
				return true
			})
		}
	}
}
