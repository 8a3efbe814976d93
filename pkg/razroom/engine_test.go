package razroom

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/razzie/razroom/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPanics(t *testing.T) {
	e := New(store.NewMemory())
	assert.Panics(t, func() { e.Register(nil) })
	e.Register(&testVariant{})
	assert.Panics(t, func() { e.Register(&testVariant{}) })
	assert.Equal(t, []string{"test"}, e.Variants())
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateSession(f.ctx, "poker", nil)
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = f.engine.CreateSession(f.ctx, "test", map[string]any{
		ParamMaxPlayers: 9, ParamTimePerPlayer: 60.0, ParamRanked: false,
	})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ParamMaxPlayers, verr.Field)

	ref := f.room(2, 60, false)
	assert.True(t, strings.HasPrefix(ref.ID, "g"))
	assert.Len(t, ref.ID, 1+idLength)
	assert.Equal(t, StatusWaiting, f.status(ref))
	ok, err := f.engine.Exists(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	seats, err := f.engine.Seats(f.ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, seats)
	winners, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, winners)
	assert.Empty(t, losers)
	for _, consume := range []func() (bool, error){
		func() (bool, error) { return f.engine.ConsumeChanged(f.ctx, ref) },
		func() (bool, error) { return f.engine.ConsumeStateDirty(f.ctx, ref) },
		func() (bool, error) { return f.engine.ConsumeScoresPendingPush(f.ctx, ref) },
		func() (bool, error) { return f.engine.ConsumeScoresPendingRating(f.ctx, ref) },
	} {
		v, err := consume()
		require.NoError(t, err)
		assert.False(t, v)
	}

	require.NoError(t, f.engine.DeleteSession(f.ctx, ref))
	ok, err = f.engine.Exists(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X")

	tbl := f.table(ref)
	_, err := tbl.incrSeat(f.ctx, "p1", seatInactivePings, 2)
	require.NoError(t, err)

	f.join(ref, "X")
	seats, err := f.engine.Seats(f.ctx, ref)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, Chair("p1"), seats[0].Chair)
	assert.Equal(t, "id-X", seats[0].PlayerID)
	assert.Zero(t, seats[0].InactivePings)
	assert.True(t, seats[0].Active)
}

func TestJoinNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X", "Y")

	ok, err := f.engine.Join(f.ctx, ref, player("Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	seats, err := f.engine.Seats(f.ctx, ref)
	require.NoError(t, err)
	assert.Len(t, seats, 2)
}

func TestJoinTakesLowestFreeChair(t *testing.T) {
	f := newFixture(t)
	ref := f.room(3, 60, false)
	f.join(ref, "X", "Y", "Z")
	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-Y"))
	changed, err := f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, changed)

	f.join(ref, "W")
	assert.Equal(t, "id-W", f.seat(ref, "p2").PlayerID)
}

func TestJoinOngoingRoomOnlyRejoins(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")

	ok, err := f.engine.Join(f.ctx, ref, player("Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.engine.Join(f.ctx, ref, player("X"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJoinConcurrently(t *testing.T) {
	f := newFixture(t)
	ref := f.room(4, 60, false)

	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			ok, err := f.engine.Join(f.ctx, ref, player(string(rune('A'+i))))
			assert.NoError(t, err)
			results <- ok
		}(i)
	}
	joined := 0
	for i := 0; i < 10; i++ {
		if <-results {
			joined++
		}
	}
	assert.Equal(t, 4, joined)
	seats, err := f.engine.Seats(f.ctx, ref)
	require.NoError(t, err)
	assert.Len(t, seats, 4)
}

func TestSetReadyIgnoresNonBool(t *testing.T) {
	f := newFixture(t)
	ref := f.room(1, 60, false)
	f.join(ref, "X")

	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-X", "yes"))
	assert.False(t, f.seat(ref, "p1").Ready)
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-X", true))
	assert.True(t, f.seat(ref, "p1").Ready)
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-nobody", true))
}

func TestInfoShowsBorderlineAsActive(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X", "Y")
	require.NoError(t, f.engine.SetDisplayName(f.ctx, ref, "id-Y", "Yvonne"))

	for i := 0; i < 2; i++ {
		require.NoError(t, f.engine.SetActive(f.ctx, ref, "id-X", false))
	}
	info, err := f.engine.Info(f.ctx, ref)
	require.NoError(t, err)
	require.Len(t, info.Players, 2)
	assert.True(t, info.Players[0].Active)
	assert.Equal(t, "Yvonne", info.Players[1].DisplayName)
	assert.Equal(t, 2, info.MaxPlayers)
	assert.Equal(t, StatusWaiting, info.Status)

	require.NoError(t, f.engine.SetActive(f.ctx, ref, "id-X", false))
	info, err = f.engine.Info(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, info.Players[0].Active)

	require.NoError(t, f.engine.SetActive(f.ctx, ref, "id-X", true))
	assert.Zero(t, f.seat(ref, "p1").InactivePings)
}

// Scenario A
func TestStartTwoPlayerRoom(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 90, false)
	f.join(ref, "X", "Y")

	ok, err := f.engine.CanStart(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok, "nobody is ready yet")

	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-X", true))
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-Y", true))
	ok, err = f.engine.CanStart(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
	f.requireTurnInvariant(ref)

	ok, err = f.engine.Start(f.ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, StatusOngoing, f.status(ref))
	cur, ok, err := f.engine.CurrentPlayer(f.ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, []Chair{"p1", "p2"}, cur)
	f.requireTurnInvariant(ref)

	for _, c := range []Chair{"p1", "p2"} {
		s := f.seat(ref, c)
		assert.Equal(t, 90.0, s.MoveTime)
		assert.Equal(t, float64(inactivityBudget), s.Timeout)
		assert.Zero(t, s.Points)
	}

	hand, err := f.engine.Hand(f.ctx, ref, "id-X")
	require.NoError(t, err)
	assert.JSONEq(t, `["token-p1"]`, string(hand))
	moves, err := f.engine.LegalMoves(f.ctx, ref, "id-Y")
	require.NoError(t, err)
	assert.Equal(t, []string{"pass", "end", "tie"}, moves)
}

func TestStartNeedsFullRoom(t *testing.T) {
	f := newFixture(t)
	ref := f.room(3, 60, false)
	f.join(ref, "X", "Y")
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-X", true))
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-Y", true))

	ok, err := f.engine.Start(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatusWaiting, f.status(ref))
}

func TestAdvanceTurnCyclesOccupiedChairs(t *testing.T) {
	f := newFixture(t)
	ref := f.room(4, 60, false)
	f.join(ref, "A", "B", "C", "D")
	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-B"))

	tbl := f.table(ref)
	require.NoError(t, tbl.setStatus(f.ctx, StatusOngoing))
	require.NoError(t, tbl.set(f.ctx, fieldCurrent, Chair("p1")))

	var order []Chair
	for i := 0; i < 4; i++ {
		next, err := f.engine.AdvanceTurn(f.ctx, ref)
		require.NoError(t, err)
		order = append(order, next)
	}
	assert.Equal(t, []Chair{"p3", "p4", "p1", "p3"}, order)
}

func TestLeaveOngoingKeepsSeat(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")

	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-X"))
	s := f.seat(ref, "p1")
	require.NotNil(t, s)
	assert.False(t, s.Active)
	assert.Equal(t, borderlinePings+1, s.InactivePings)
	assert.NotZero(t, s.InactivityCheckpoint)
	changed, err := f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, changed)
}

// Scenario B
func TestMissedPingsForceLeave(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")

	for i := 0; i < evictPings; i++ {
		require.NoError(t, f.engine.SetActive(f.ctx, ref, "id-X", false))
	}
	s := f.seat(ref, "p1")
	require.NotNil(t, s, "seats are never removed mid-round")
	assert.False(t, s.Active)
	assert.Equal(t, evictPings, s.InactivePings)
	assert.Equal(t, StatusOngoing, f.status(ref))

	changed, err := f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, changed, "flags are cleared by the read")

	require.NoError(t, f.engine.SetActive(f.ctx, ref, "id-X", false))
	changed, err = f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, changed, "pings past the threshold keep marking the room")
}

func TestMissedPingsRemoveSeatWhileWaiting(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X", "Y")

	for i := 0; i < evictPings; i++ {
		require.NoError(t, f.engine.SetActive(f.ctx, ref, "id-X", false))
	}
	assert.Nil(t, f.seat(ref, "p1"))
	assert.NotNil(t, f.seat(ref, "p2"))
}

// Scenario C
func TestFinishAssignsResult(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")

	require.NoError(t, f.engine.Finish(f.ctx, ref, []string{"Y"}))
	winners, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, winners)
	assert.Equal(t, []string{"Y"}, losers)
	assert.Equal(t, StatusFinished, f.status(ref))
	f.requireTurnInvariant(ref)

	pending, err := f.engine.ConsumeScoresPendingPush(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, pending)
	pending, err = f.engine.ConsumeScoresPendingRating(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, pending, "unranked rooms are not reported")

	require.Len(t, f.rec.calls, 1)
	assert.ElementsMatch(t, []Participation{
		{PlayerID: "id-X", DisplayName: "X", Outcome: OutcomeWin},
		{PlayerID: "id-Y", DisplayName: "Y", Outcome: OutcomeLose},
	}, f.rec.calls[0])

	require.NoError(t, f.engine.Finish(f.ctx, ref, []string{"X"}))
	assert.Len(t, f.rec.calls, 1, "finishing twice is a no-op")
}

// Scenario D
func TestDrawRecordsDrawForEveryone(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y", "Z")

	require.NoError(t, f.engine.Draw(f.ctx, ref))
	assert.Equal(t, StatusFinished, f.status(ref))
	draw, err := f.table(ref).getBool(f.ctx, fieldDraw)
	require.NoError(t, err)
	assert.True(t, draw)

	require.Len(t, f.rec.calls, 1)
	require.Len(t, f.rec.calls[0], 3)
	for _, p := range f.rec.calls[0] {
		assert.Equal(t, OutcomeDraw, p.Outcome, p.PlayerID)
	}
	winners, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, winners)
	assert.Empty(t, losers)

	report, err := f.engine.Scores(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ReasonDraw, report.Reason)
	for _, line := range report.Players {
		assert.Equal(t, "draw", line.Score)
		assert.Zero(t, line.Points)
	}
}

func TestSurrender(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")
	require.NoError(t, f.engine.SetDisplayName(f.ctx, ref, "id-X", "Xavier"))

	require.NoError(t, f.engine.Surrender(f.ctx, ref, "id-X"))
	winners, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, winners)
	assert.Equal(t, []string{"Xavier"}, losers)

	report, err := f.engine.Scores(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ReasonSurrender, report.Reason)
	require.Len(t, report.Players, 2)
	assert.Equal(t, -50, report.Players[0].Points)
	assert.Equal(t, 50, report.Players[1].Points)
}

func TestRematch(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")

	ok, err := f.engine.Rematch(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok, "only finished rooms can rematch")

	require.NoError(t, f.engine.ApplyRatingUpdate(f.ctx, ref, map[string]float64{"id-X": 12}))
	require.NoError(t, f.engine.Finish(f.ctx, ref, []string{"Y"}))
	before := f.seat(ref, "p1")

	ok, err = f.engine.Rematch(f.ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, f.status(ref))
	f.requireTurnInvariant(ref)

	after := f.seat(ref, "p1")
	assert.False(t, after.Ready)
	assert.False(t, f.seat(ref, "p2").Ready)
	assert.Equal(t, before.Rating, after.Rating)
	assert.Equal(t, before.PlayerID, after.PlayerID)
	assert.Equal(t, before.Login, after.Login)
	assert.Equal(t, before.DisplayName, after.DisplayName)

	winners, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, winners)
	assert.Empty(t, losers)
}

func TestPlay(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X", "Y")

	ok, err := f.engine.Play(f.ctx, ref, "id-X", "pass", "")
	require.NoError(t, err)
	assert.False(t, ok, "no moves before the round starts")

	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-X", true))
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-Y", true))
	_, err = f.engine.Start(f.ctx, ref)
	require.NoError(t, err)

	before, _, err := f.engine.CurrentPlayer(f.ctx, ref)
	require.NoError(t, err)
	ok, err = f.engine.Play(f.ctx, ref, "id-X", "pass", "")
	require.NoError(t, err)
	assert.True(t, ok)
	after, _, err := f.engine.CurrentPlayer(f.ctx, ref)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	dirty, err := f.engine.ConsumeStateDirty(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, dirty)

	ok, err = f.engine.Play(f.ctx, ref, "id-X", "cheat", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatusOngoing, f.status(ref))

	ok, err = f.engine.Play(f.ctx, ref, "id-Y", "end", "X")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusFinished, f.status(ref))
	_, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, losers)
}

func TestPlayDrawnRound(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")

	ok, err := f.engine.Play(f.ctx, ref, "id-X", "tie", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusFinished, f.status(ref))
	require.Len(t, f.rec.calls, 1)
	assert.Equal(t, OutcomeDraw, f.rec.calls[0][0].Outcome)
}

func TestStateView(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")
	cur, _, err := f.engine.CurrentPlayer(f.ctx, ref)
	require.NoError(t, err)

	f.clock.Advance(1500 * time.Millisecond)
	require.NoError(t, f.engine.CheckTimers(f.ctx, ref))

	state, err := f.engine.State(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, cur, state.CurrentPlayer)
	require.Len(t, state.Players, 2)
	for _, p := range state.Players {
		if p.Position == cur {
			assert.Equal(t, 59, p.Time)
		} else {
			assert.Equal(t, 60, p.Time)
		}
	}
}

func TestReap(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X")

	reaped, err := f.engine.Reap(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, reaped)

	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-X"))
	reaped, err = f.engine.Reap(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, reaped)
	assert.Equal(t, Status(""), f.status(ref))
}

func TestLateWritesLeaveNoDocument(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, true)
	f.join(ref, "X")
	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-X"))
	reaped, err := f.engine.Reap(f.ctx, ref)
	require.NoError(t, err)
	require.True(t, reaped)

	require.NoError(t, f.engine.ApplyRatingUpdate(f.ctx, ref, map[string]float64{"id-X": 16}))
	require.NoError(t, f.engine.SetScoresPendingRating(f.ctx, ref, true))
	ok, err := f.engine.st.Exists(f.ctx, ref.doc(), "")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.engine.Exists(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionLocksAreReleased(t *testing.T) {
	f := newFixture(t)

	unknown := Ref{Variant: "test", ID: "gnothere1"}
	ok, err := f.engine.Exists(f.ctx, unknown)
	require.NoError(t, err)
	assert.False(t, ok)
	_, loaded := f.engine.locks.Load(unknown.doc())
	assert.False(t, loaded)

	ref := f.room(2, 60, false)
	f.join(ref, "X")
	_, loaded = f.engine.locks.Load(ref.doc())
	require.True(t, loaded)
	require.NoError(t, f.engine.DeleteSession(f.ctx, ref))
	_, loaded = f.engine.locks.Load(ref.doc())
	assert.False(t, loaded)
}

func TestEngineOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	f := newFixtureOn(t, store.NewRedisFromClient(client, "razroom:"))

	ref := f.started(30, true, "X", "Y")
	f.clock.Advance(2 * time.Second)
	ok, err := f.engine.Play(f.ctx, ref, "id-X", "end", "Y")
	require.NoError(t, err)
	require.True(t, ok)

	winners, losers, err := f.engine.Result(f.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, winners)
	assert.Equal(t, []string{"Y"}, losers)
	pending, err := f.engine.ConsumeScoresPendingRating(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, pending)

	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-X"))
	require.NoError(t, f.engine.Leave(f.ctx, ref, "id-Y"))
	reaped, err := f.engine.Reap(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, reaped)
	assert.False(t, mr.Exists("razroom:"+ref.String()))
}

func TestStartWaitingNeverRestarts(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, false)
	f.join(ref, "X", "Y")
	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-X", true))

	ok, err := f.engine.StartWaiting(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.engine.SetReady(f.ctx, ref, "id-Y", true))
	ok, err = f.engine.StartWaiting(f.ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.table(ref).AddPoints(f.ctx, "p1", 7)
	require.NoError(t, err)
	ok, err = f.engine.StartWaiting(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 7, f.seat(ref, "p1").Points)
}
