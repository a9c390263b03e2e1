package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveFGPct(t *testing.T) {
	o := TeamOpponentStatsInput{OppFGM: 40, OppFG3M: 12, OppFGA: 88}
	assert.InDelta(t, 46.0/88.0, o.EffectiveFGPct(), 1e-12)

	o.OppFGA = 0
	assert.Equal(t, 0.0, o.EffectiveFGPct())
}

func TestMergeTeamStats(t *testing.T) {
	base := []TeamBaseStatsInput{
		{TeamID: 10, TeamName: "Alpha", Wins: 6, Losses: 1},
		{TeamID: 20, TeamName: "Beta", Wins: 2, Losses: 5},
	}
	adv := []TeamAdvancedStatsInput{{TeamID: 10, Pace: 99.5, DefRating: 108.2}, {TeamID: 30, Pace: 1}}
	opp := []TeamOpponentStatsInput{{TeamID: 10, OppPTS: 110, OppFGM: 40, OppFG3M: 12, OppFGA: 88, OppBLK: 4.5}}

	lines := MergeTeamStats(base, adv, opp)
	require.Len(t, lines, 2, "only teams in the base table are merged")

	alpha := lines[0]
	assert.Equal(t, 10, alpha.ExternalID)
	assert.Equal(t, sql.NullInt32{Int32: 6, Valid: true}, alpha.Metrics.Wins)
	assert.Equal(t, sql.NullFloat64{Float64: 99.5, Valid: true}, alpha.Metrics.Pace)
	assert.Equal(t, sql.NullFloat64{Float64: 110, Valid: true}, alpha.Metrics.OppPPG)
	assert.InDelta(t, 46.0/88.0, alpha.Metrics.OppEFGPct.Float64, 1e-12)
	assert.Equal(t, 4.5, alpha.Metrics.OppBLK.Float64)

	beta := lines[1]
	assert.Equal(t, sql.NullInt32{Int32: 5, Valid: true}, beta.Metrics.Losses)
	assert.False(t, beta.Metrics.Pace.Valid)
	assert.False(t, beta.Metrics.OppPPG.Valid)
}
