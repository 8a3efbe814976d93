package razroom

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/razzie/razroom/pkg/store"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

// Chair is a seat id, p1..pN.
type Chair string

func ChairN(n int) Chair {
	return Chair("p" + strconv.Itoa(n))
}

func (c Chair) Index() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(c), "p"))
	if err != nil {
		return 0
	}
	return n
}

// Ref addresses one session: its variant and its id.
type Ref struct {
	Variant string `json:"variant"`
	ID      string `json:"id"`
}

func (r Ref) String() string {
	return r.doc()
}

func (r Ref) doc() string {
	return strings.ToLower(r.Variant) + "." + r.ID
}

const (
	fieldStatus         = "status"
	fieldConfig         = "config"
	fieldCurrent        = "current_player"
	fieldStarting       = "starting_player"
	fieldMoveCheckpoint = "move_checkpoint"
	fieldDraw           = "draw"
	fieldSurrender      = "surrender"
	fieldEndedByTimeout = "ended_by_timeout"
	fieldWinners        = "result.winners"
	fieldLosers         = "result.losers"

	flagChanged       = "changed"
	flagStateDirty    = "state_dirty"
	flagPendingPush   = "scores_pending_push"
	flagPendingRating = "scores_pending_rating"

	seatID                   = "id"
	seatLogin                = "login"
	seatDisplayName          = "display_name"
	seatRating               = "rating"
	seatReady                = "ready"
	seatActive               = "active"
	seatInactivePings        = "inactive_pings"
	seatMoveTime             = "move_time"
	seatTimeout              = "timeout"
	seatInactivityCheckpoint = "inactivity_checkpoint"
	seatPoints               = "points"
	seatVariantState         = "variant_state"
)

var allFlags = []string{flagChanged, flagStateDirty, flagPendingPush, flagPendingRating}

// Seat is a snapshot of one occupied chair.
type Seat struct {
	Chair                Chair   `json:"position"`
	PlayerID             string  `json:"id"`
	Login                string  `json:"login"`
	DisplayName          string  `json:"display_name"`
	Rating               float64 `json:"rating"`
	Ready                bool    `json:"ready"`
	Active               bool    `json:"active"`
	InactivePings        int     `json:"inactive_pings"`
	MoveTime             float64 `json:"move_time"`
	Timeout              float64 `json:"timeout"`
	InactivityCheckpoint float64 `json:"-"`
	Points               int     `json:"points"`
}

// Table is the typed view of one session document. It is handed to variants
// and is only used while the engine holds the session's lock.
type Table struct {
	st  store.Store
	ref Ref
	doc string
	now func() time.Time
	cfg *Config
}

func newTable(st store.Store, ref Ref, now func() time.Time) *Table {
	return &Table{st: st, ref: ref, doc: ref.doc(), now: now}
}

func (t *Table) Ref() Ref {
	return t.ref
}

func (t *Table) Now() time.Time {
	return t.now()
}

func (t *Table) clock() float64 {
	return float64(t.now().UnixNano()) / float64(time.Second)
}

func getField[T any](ctx context.Context, t *Table, path string) (T, bool, error) {
	var v T
	raw, ok, err := t.st.Get(ctx, t.doc, path)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("%s %s: %w", t.ref, path, err)
	}
	return v, true, nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func (t *Table) set(ctx context.Context, path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.st.Set(ctx, t.doc, path, raw)
}

func (t *Table) setIfAbsent(ctx context.Context, path string, v any) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	return t.st.SetIfAbsent(ctx, t.doc, path, raw)
}

func (t *Table) del(ctx context.Context, path string) error {
	return t.st.Delete(ctx, t.doc, path)
}

func (t *Table) getBool(ctx context.Context, path string) (bool, error) {
	v, _, err := getField[bool](ctx, t, path)
	return v, err
}

func (t *Table) Config(ctx context.Context) (*Config, error) {
	if t.cfg != nil {
		return t.cfg, nil
	}
	cfg, ok, err := getField[*Config](ctx, t, fieldConfig)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return &Config{}, nil
	}
	t.cfg = cfg
	return cfg, nil
}

func (t *Table) Status(ctx context.Context) (Status, error) {
	s, _, err := getField[Status](ctx, t, fieldStatus)
	return s, err
}

// exists reports whether the session document was created.
func (t *Table) exists(ctx context.Context) (bool, error) {
	return t.st.Exists(ctx, t.doc, fieldStatus)
}

func (t *Table) setStatus(ctx context.Context, s Status) error {
	return t.set(ctx, fieldStatus, s)
}

func seatPath(c Chair, field string) string {
	if field == "" {
		return store.Join("seats", string(c))
	}
	return store.Join("seats", string(c), field)
}

func (t *Table) occupied(ctx context.Context, c Chair) (bool, error) {
	return t.st.Exists(ctx, t.doc, seatPath(c, seatID))
}

// Chairs lists the occupied chairs in ascending order.
func (t *Table) Chairs(ctx context.Context) ([]Chair, error) {
	cfg, err := t.Config(ctx)
	if err != nil {
		return nil, err
	}
	var chairs []Chair
	for i := 1; i <= cfg.MaxPlayers; i++ {
		c := ChairN(i)
		ok, err := t.occupied(ctx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			chairs = append(chairs, c)
		}
	}
	return chairs, nil
}

func (t *Table) firstFreeChair(ctx context.Context) (Chair, bool, error) {
	cfg, err := t.Config(ctx)
	if err != nil {
		return "", false, err
	}
	for i := 1; i <= cfg.MaxPlayers; i++ {
		c := ChairN(i)
		ok, err := t.occupied(ctx, c)
		if err != nil {
			return "", false, err
		}
		if !ok {
			return c, true, nil
		}
	}
	return "", false, nil
}

// Seat reads every field of one chair. A free chair yields nil.
func (t *Table) Seat(ctx context.Context, c Chair) (*Seat, error) {
	id, ok, err := getField[string](ctx, t, seatPath(c, seatID))
	if err != nil || !ok {
		return nil, err
	}
	s := &Seat{Chair: c, PlayerID: id}
	if s.Login, _, err = getField[string](ctx, t, seatPath(c, seatLogin)); err != nil {
		return nil, err
	}
	if s.DisplayName, _, err = getField[string](ctx, t, seatPath(c, seatDisplayName)); err != nil {
		return nil, err
	}
	if s.Rating, _, err = getField[float64](ctx, t, seatPath(c, seatRating)); err != nil {
		return nil, err
	}
	if s.Ready, _, err = getField[bool](ctx, t, seatPath(c, seatReady)); err != nil {
		return nil, err
	}
	if s.Active, _, err = getField[bool](ctx, t, seatPath(c, seatActive)); err != nil {
		return nil, err
	}
	if s.InactivePings, _, err = getField[int](ctx, t, seatPath(c, seatInactivePings)); err != nil {
		return nil, err
	}
	if s.MoveTime, _, err = getField[float64](ctx, t, seatPath(c, seatMoveTime)); err != nil {
		return nil, err
	}
	if s.Timeout, _, err = getField[float64](ctx, t, seatPath(c, seatTimeout)); err != nil {
		return nil, err
	}
	if s.InactivityCheckpoint, _, err = getField[float64](ctx, t, seatPath(c, seatInactivityCheckpoint)); err != nil {
		return nil, err
	}
	if s.Points, _, err = getField[int](ctx, t, seatPath(c, seatPoints)); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *Table) Seats(ctx context.Context) ([]*Seat, error) {
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return nil, err
	}
	seats := make([]*Seat, 0, len(chairs))
	for _, c := range chairs {
		s, err := t.Seat(ctx, c)
		if err != nil {
			return nil, err
		}
		if s != nil {
			seats = append(seats, s)
		}
	}
	return seats, nil
}

func (t *Table) chairOf(ctx context.Context, playerID string) (Chair, bool, error) {
	return t.chairBy(ctx, seatID, playerID)
}

func (t *Table) chairBy(ctx context.Context, field, value string) (Chair, bool, error) {
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return "", false, err
	}
	for _, c := range chairs {
		v, _, err := getField[string](ctx, t, seatPath(c, field))
		if err != nil {
			return "", false, err
		}
		if v == value {
			return c, true, nil
		}
	}
	return "", false, nil
}

func (t *Table) DisplayName(ctx context.Context, c Chair) (string, error) {
	name, _, err := getField[string](ctx, t, seatPath(c, seatDisplayName))
	return name, err
}

func (t *Table) setSeat(ctx context.Context, c Chair, field string, v any) error {
	return t.set(ctx, seatPath(c, field), v)
}

func (t *Table) incrSeat(ctx context.Context, c Chair, field string, delta float64) (float64, error) {
	return t.st.Increment(ctx, t.doc, seatPath(c, field), delta)
}

func (t *Table) AddPoints(ctx context.Context, c Chair, delta int) (int, error) {
	v, err := t.incrSeat(ctx, c, seatPoints, float64(delta))
	return int(v), err
}

// AddMoveTime credits seconds to a seat's move clock.
func (t *Table) AddMoveTime(ctx context.Context, c Chair, seconds float64) error {
	_, err := t.incrSeat(ctx, c, seatMoveTime, seconds)
	return err
}

// CurrentPlayer is only reported while the round is ongoing.
func (t *Table) CurrentPlayer(ctx context.Context) (Chair, bool, error) {
	status, err := t.Status(ctx)
	if err != nil || status != StatusOngoing {
		return "", false, err
	}
	return getField[Chair](ctx, t, fieldCurrent)
}

func (t *Table) StartingPlayer(ctx context.Context) (Chair, bool, error) {
	return getField[Chair](ctx, t, fieldStarting)
}

// AdvanceTurn hands the turn to the next occupied chair in ascending order,
// wrapping to the lowest. Variants that skip or reorder turns call it more
// than once or not at all.
func (t *Table) AdvanceTurn(ctx context.Context) (Chair, error) {
	cur, ok, err := t.CurrentPlayer(ctx)
	if err != nil || !ok {
		return "", err
	}
	chairs, err := t.Chairs(ctx)
	if err != nil || len(chairs) == 0 {
		return "", err
	}
	next := chairs[0]
	for _, c := range chairs {
		if c.Index() > cur.Index() {
			next = c
			break
		}
	}
	return next, t.set(ctx, fieldCurrent, next)
}

func (t *Table) VariantState(ctx context.Context, c Chair, dst any) (bool, error) {
	raw, ok, err := t.st.Get(ctx, t.doc, seatPath(c, seatVariantState))
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (t *Table) SetVariantState(ctx context.Context, c Chair, v any) error {
	return t.setSeat(ctx, c, seatVariantState, v)
}

func (t *Table) RawVariantState(ctx context.Context, c Chair) (json.RawMessage, error) {
	raw, _, err := t.st.Get(ctx, t.doc, seatPath(c, seatVariantState))
	return raw, err
}

func sharedPath(name string) string {
	return store.Join("shared", name)
}

// Shared reads a variant-owned shared resource, such as a draw pile.
func (t *Table) Shared(ctx context.Context, name string, dst any) (bool, error) {
	raw, ok, err := t.st.Get(ctx, t.doc, sharedPath(name))
	if err != nil || !ok {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (t *Table) SetShared(ctx context.Context, name string, v any) error {
	return t.set(ctx, sharedPath(name), v)
}

func (t *Table) AppendShared(ctx context.Context, name string, v any) (int, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return t.st.Append(ctx, t.doc, sharedPath(name), raw)
}

func (t *Table) SharedLen(ctx context.Context, name string) (int, error) {
	return t.st.Len(ctx, t.doc, sharedPath(name))
}

func (t *Table) resetShared(ctx context.Context) error {
	return t.del(ctx, "shared")
}

// consume returns a flag's value and clears it.
func (t *Table) consume(ctx context.Context, flag string) (bool, error) {
	v, err := t.getBool(ctx, flag)
	if err != nil || !v {
		return false, err
	}
	return true, t.set(ctx, flag, false)
}

func (t *Table) mark(ctx context.Context, flags ...string) error {
	for _, f := range flags {
		if err := t.set(ctx, f, true); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) result(ctx context.Context) (winners, losers []string, err error) {
	if winners, _, err = getField[[]string](ctx, t, fieldWinners); err != nil {
		return nil, nil, err
	}
	if losers, _, err = getField[[]string](ctx, t, fieldLosers); err != nil {
		return nil, nil, err
	}
	return winners, losers, nil
}

func (t *Table) clearResult(ctx context.Context) error {
	if err := t.set(ctx, fieldWinners, []string{}); err != nil {
		return err
	}
	return t.set(ctx, fieldLosers, []string{})
}
