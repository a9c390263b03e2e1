package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleGameInput_StatusName(t *testing.T) {
	for status, want := range map[int]string{1: StatusScheduled, 2: StatusLive, 3: StatusFinal, 0: StatusScheduled, 9: StatusScheduled} {
		in := ScheduleGameInput{GameStatus: status}
		assert.Equal(t, want, in.StatusName(), "status %d", status)
	}
}

func TestScheduleGameInput_ToGameResult(t *testing.T) {
	home, away := 118, 109
	in := ScheduleGameInput{GameStatus: 3, HomeTeamScore: &home, AwayTeamScore: &away}
	assert.Equal(t, GameResult{
		Status:    StatusFinal,
		HomeScore: sql.NullInt32{Int32: 118, Valid: true},
		AwayScore: sql.NullInt32{Int32: 109, Valid: true},
	}, in.ToGameResult())

	in = ScheduleGameInput{GameStatus: 1}
	assert.Equal(t, GameResult{Status: StatusScheduled}, in.ToGameResult())
}

func TestGame_OpponentOf(t *testing.T) {
	g := Game{HomeTeamID: 1, AwayTeamID: 2, GameDate: time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)}

	opp, home := g.OpponentOf(1)
	assert.Equal(t, 2, opp)
	assert.True(t, home)

	opp, home = g.OpponentOf(2)
	assert.Equal(t, 1, opp)
	assert.False(t, home)

	assert.Equal(t, "2025-11-06", g.DateKey())
}
