//go:build integration

package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ttfl_tracker/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	home, away *models.Team
	player     *models.Player
}

func seedFixture(t *testing.T, ctx context.Context, db *Database) fixture {
	t.Helper()
	f := fixture{
		home: &models.Team{ExternalID: 1, Abbreviation: "LAL", FullName: "Los Angeles Lakers"},
		away: &models.Team{ExternalID: 2, Abbreviation: "BOS", FullName: "Boston Celtics"},
	}
	require.NoError(t, db.UpsertTeam(ctx, f.home))
	require.NoError(t, db.UpsertTeam(ctx, f.away))

	f.player = &models.Player{ExternalID: 2544, Name: "LeBron James", TeamID: f.home.ID, IsActive: true}
	require.NoError(t, db.UpsertPlayer(ctx, f.player))
	return f
}

func day(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func TestGames_ResultAndListing(t *testing.T) {
	db, ctx := setupTestDB(t)
	f := seedFixture(t, ctx, db)

	g := &models.Game{
		ExternalID: "0022500001", HomeTeamID: f.home.ID, AwayTeamID: f.away.ID,
		GameDate: day("2025-11-01"), Status: models.StatusScheduled,
	}
	require.NoError(t, db.UpsertGame(ctx, g))

	open, err := db.ListNonFinalGames(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	result := models.GameResult{
		Status:    models.StatusFinal,
		HomeScore: sql.NullInt32{Int32: 112, Valid: true},
		AwayScore: sql.NullInt32{Int32: 104, Valid: true},
	}
	require.NoError(t, db.UpdateGameResult(ctx, g.ID, result))

	open, err = db.ListNonFinalGames(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	byDate, err := db.ListGamesByDate(ctx, day("2025-11-01"))
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, int32(112), byDate[0].HomeScore.Int32)
	assert.Equal(t, "2025-11-01", byDate[0].DateKey())
}

func TestGames_FinalWithoutScores(t *testing.T) {
	db, ctx := setupTestDB(t)
	f := seedFixture(t, ctx, db)

	old := &models.Game{ExternalID: "a", HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, GameDate: day("2025-10-01"), Status: models.StatusFinal}
	scored := &models.Game{ExternalID: "b", HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, GameDate: day("2025-11-01"), Status: models.StatusFinal}
	unscored := &models.Game{ExternalID: "c", HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, GameDate: day("2025-11-02"), Status: models.StatusFinal}
	live := &models.Game{ExternalID: "d", HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, GameDate: day("2025-11-03"), Status: models.StatusLive}
	for _, g := range []*models.Game{old, scored, unscored, live} {
		require.NoError(t, db.UpsertGame(ctx, g))
	}

	rec := models.NewScoreRecord(f.player.ID, scored.ID, 40, models.Minutes{Value: 30, Valid: true})
	require.NoError(t, db.InsertScore(ctx, rec))

	games, err := db.ListFinalGamesWithoutScores(ctx, day("2025-10-21"))
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, unscored.ID, games[0].ID)
}

func TestScores_InsertHistoryAndMinutes(t *testing.T) {
	db, ctx := setupTestDB(t)
	f := seedFixture(t, ctx, db)

	g1 := &models.Game{ExternalID: "g1", HomeTeamID: f.home.ID, AwayTeamID: f.away.ID, GameDate: day("2025-11-01"), Status: models.StatusFinal}
	g2 := &models.Game{ExternalID: "g2", HomeTeamID: f.away.ID, AwayTeamID: f.home.ID, GameDate: day("2025-11-03"), Status: models.StatusFinal}
	require.NoError(t, db.UpsertGame(ctx, g1))
	require.NoError(t, db.UpsertGame(ctx, g2))

	played := models.NewScoreRecord(f.player.ID, g1.ID, 38, models.Minutes{Value: 34, Valid: true})
	pending := models.NewScoreRecord(f.player.ID, g2.ID, 25, models.Minutes{})
	require.NoError(t, db.InsertScore(ctx, played))
	require.NoError(t, db.InsertScore(ctx, pending))

	exists, err := db.ScoreExists(ctx, f.player.ID, g1.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := models.NewScoreRecord(f.player.ID, g1.ID, 1, models.Minutes{})
	assert.Error(t, db.InsertScore(ctx, dup), "unique (player, game)")

	history, err := db.ScoreHistory(ctx, []int{f.player.ID})
	require.NoError(t, err)
	require.Len(t, history, 1, "records without minutes are excluded")
	assert.Equal(t, 38, history[0].Score)

	missing, err := db.ListScoresMissingMinutes(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, pending.ID, missing[0].ScoreID)

	require.NoError(t, db.UpdateScoreMinutes(ctx, pending.ID, 29))

	history, err = db.ScoreHistory(ctx, []int{f.player.ID})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 25, history[0].Score, "newest first")

	log, err := db.PlayerScores(ctx, f.player.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, g2.ID, log[0].GameID)
}
