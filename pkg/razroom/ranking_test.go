package razroom

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionalDelta(t *testing.T) {
	tests := []struct {
		name      string
		own       float64
		opponents []float64
		score     float64
		want      int
	}{
		{"even win", 1500, []float64{1500}, 1, 50},
		{"even loss", 1500, []float64{1500}, 0, -50},
		{"even draw", 1500, []float64{1500}, 0.5, 0},
		{"no opponents", 1500, nil, 1, 0},
		{"favourite wins", 1900, []float64{1500}, 1, 9},
		{"underdog wins", 1500, []float64{1900}, 1, 91},
		{"averaged over opponents", 1500, []float64{1500, 1900}, 1, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProvisionalDelta(tt.own, tt.opponents, tt.score, DefaultKFactor))
		})
	}
}

func TestApplyRatingUpdate(t *testing.T) {
	f := newFixture(t)
	ref := f.room(2, 60, true)
	f.join(ref, "X", "Y")
	_, err := f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)

	update := map[string]float64{"id-X": 16, "id-Y": -16, "id-ghost": 100}
	require.NoError(t, f.engine.ApplyRatingUpdate(f.ctx, ref, update))
	require.NoError(t, f.engine.ApplyRatingUpdate(f.ctx, ref, update))

	assert.Equal(t, 1532.0, f.seat(ref, "p1").Rating)
	assert.Equal(t, 1468.0, f.seat(ref, "p2").Rating)
	changed, err := f.engine.ConsumeChanged(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, changed)
}

type fakeAuthority struct {
	requested [][]string
	reports   []*Report
	fail      bool
}

func (a *fakeAuthority) RequestRatings(_ context.Context, _ Ref, ids []string) error {
	a.requested = append(a.requested, ids)
	return nil
}

func (a *fakeAuthority) ReportResult(_ context.Context, _ Ref, r *Report) error {
	if a.fail {
		return errors.New("broker down")
	}
	a.reports = append(a.reports, r)
	return nil
}

func TestReportResult(t *testing.T) {
	auth := &fakeAuthority{}
	f := newFixture(t, WithAuthority(auth))
	ref := f.started(60, true, "X", "Y")

	require.NoError(t, f.engine.RequestRating(f.ctx, ref, "id-X"))
	assert.Equal(t, [][]string{{"id-X"}}, auth.requested)

	sent, err := f.engine.ReportResult(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, sent, "nothing to report mid-round")

	require.NoError(t, f.engine.Finish(f.ctx, ref, []string{"X"}))

	auth.fail = true
	sent, err = f.engine.ReportResult(f.ctx, ref)
	assert.Error(t, err)
	assert.True(t, sent)

	auth.fail = false
	sent, err = f.engine.ReportResult(f.ctx, ref)
	require.NoError(t, err)
	assert.True(t, sent, "a failed report stays pending")
	require.Len(t, auth.reports, 1)
	r := auth.reports[0]
	assert.True(t, r.Ranked)
	assert.Equal(t, ReasonFinish, r.Reason)
	assert.Equal(t, []string{"Y"}, r.Winners)
	assert.Equal(t, []string{"X"}, r.Losers)
	require.Len(t, r.Players, 2)
	assert.Equal(t, "lose", r.Players[0].Score)
	assert.Equal(t, "win", r.Players[1].Score)

	sent, err = f.engine.ReportResult(f.ctx, ref)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestScoresTimeSecWithIncrement(t *testing.T) {
	f := newFixture(t)
	ref := f.started(60, false, "X", "Y")
	require.NoError(t, f.table(ref).AddMoveTime(f.ctx, "p1", 30))
	require.NoError(t, f.engine.Surrender(f.ctx, ref, "id-Y"))

	report, err := f.engine.Scores(f.ctx, ref)
	require.NoError(t, err)
	require.Len(t, report.Players, 2)
	assert.Equal(t, "X", report.Players[0].DisplayName)
	assert.Equal(t, 0, report.Players[0].TimeSec)
	for _, line := range report.Players {
		assert.GreaterOrEqual(t, line.TimeSec, 0, line.DisplayName)
	}
}
