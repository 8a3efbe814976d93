package razroom

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/razzie/razroom/pkg/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSchema = `{
	"params": [
		{"name": "max_players", "type": "int", "min": 1, "max": 4},
		{"name": "time_per_player", "type": "time", "min": "00:05", "max": "30:00"},
		{"name": "is_ranked", "type": "bool"}
	]
}`

// testVariant ends the round on an "end" action with the move as loser, and
// on "tie" as a draw. "pass" hands the turn on, anything else is rejected.
type testVariant struct {
	over   bool
	draw   bool
	losers []string
}

func (v *testVariant) Name() string   { return "Test" }
func (v *testVariant) Schema() Schema { return MustParseSchema([]byte(testSchema)) }

func (v *testVariant) Setup(ctx context.Context, t *Table) error {
	v.over, v.draw, v.losers = false, false, nil
	chairs, err := t.Chairs(ctx)
	if err != nil {
		return err
	}
	for _, c := range chairs {
		if err := t.SetVariantState(ctx, c, []string{"token-" + string(c)}); err != nil {
			return err
		}
	}
	return t.SetShared(ctx, "pile", []string{})
}

func (v *testVariant) Play(ctx context.Context, t *Table, chair Chair, action, move string) (bool, error) {
	switch action {
	case "pass":
		_, err := t.AdvanceTurn(ctx)
		return err == nil, err
	case "end":
		v.over, v.losers = true, []string{move}
		return true, nil
	case "tie":
		v.over, v.draw = true, true
		return true, nil
	}
	return false, nil
}

func (v *testVariant) IsRoundOver(context.Context, *Table) (bool, error) { return v.over, nil }
func (v *testVariant) IsDraw(context.Context, *Table) (bool, error)      { return v.draw, nil }
func (v *testVariant) SelectLosers(context.Context, *Table) error        { return nil }

func (v *testVariant) LosingDisplayNames(context.Context, *Table) ([]string, error) {
	return v.losers, nil
}

func (v *testVariant) LegalMoves(context.Context, *Table, Chair) ([]string, error) {
	return []string{"pass", "end", "tie"}, nil
}

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mtx   sync.Mutex
	calls [][]Participation
}

func (r *recorder) RecordOutcomes(_ context.Context, _ Ref, outcomes []Participation) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.calls = append(r.calls, outcomes)
	return nil
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	engine  *Engine
	variant *testVariant
	clock   *fakeClock
	rec     *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	return newFixtureOn(t, store.NewMemory(), opts...)
}

func newFixtureOn(t *testing.T, st store.Store, opts ...Option) *fixture {
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		variant: &testVariant{},
		clock:   newFakeClock(),
		rec:     &recorder{},
	}
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(f.clock.Now),
		WithRecorder(f.rec),
	}, opts...)
	f.engine = New(st, opts...)
	f.engine.Register(f.variant)
	return f
}

func (f *fixture) room(players int, seconds float64, ranked bool) Ref {
	id, err := f.engine.CreateSession(f.ctx, "test", map[string]any{
		ParamMaxPlayers:    players,
		ParamTimePerPlayer: seconds,
		ParamRanked:        ranked,
	})
	require.NoError(f.t, err)
	return Ref{Variant: "test", ID: id}
}

func player(name string) Player {
	return Player{ID: "id-" + name, Login: name, Rating: 1500}
}

func (f *fixture) join(ref Ref, names ...string) {
	for _, name := range names {
		ok, err := f.engine.Join(f.ctx, ref, player(name))
		require.NoError(f.t, err)
		require.True(f.t, ok, "join %s", name)
	}
}

// started seats every name, marks them ready and starts the round.
func (f *fixture) started(seconds float64, ranked bool, names ...string) Ref {
	ref := f.room(len(names), seconds, ranked)
	f.join(ref, names...)
	for _, name := range names {
		require.NoError(f.t, f.engine.SetReady(f.ctx, ref, "id-"+name, true))
	}
	ok, err := f.engine.Start(f.ctx, ref)
	require.NoError(f.t, err)
	require.True(f.t, ok)
	return ref
}

func (f *fixture) table(ref Ref) *Table {
	return newTable(f.engine.st, ref, f.clock.Now)
}

func (f *fixture) seat(ref Ref, c Chair) *Seat {
	s, err := f.table(ref).Seat(f.ctx, c)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) status(ref Ref) Status {
	s, err := f.engine.Status(f.ctx, ref)
	require.NoError(f.t, err)
	return s
}

// requireTurnInvariant checks that a current player exists exactly while the
// round is ongoing.
func (f *fixture) requireTurnInvariant(ref Ref) {
	status := f.status(ref)
	_, stored, err := getField[Chair](f.ctx, f.table(ref), fieldCurrent)
	require.NoError(f.t, err)
	require.Equal(f.t, status == StatusOngoing, stored, "status %s", status)
}
