package models

import (
	"database/sql"
	"time"
)

// ScoreRecord is the composite fantasy score of one player in one game.
// (player_id, game_id) is unique; a record is never deleted and only its
// absent minutes can be filled in later.
type ScoreRecord struct {
	ID        int           `db:"id"`
	PlayerID  int           `db:"player_id"`
	GameID    int           `db:"game_id"`
	Score     sql.NullInt32 `db:"ttfl_score"`
	Minutes   sql.NullInt32 `db:"minutes"`
	CreatedAt time.Time     `db:"created_at"`
}

// NewScoreRecord builds an unsaved score record
func NewScoreRecord(playerID, gameID, score int, minutes Minutes) *ScoreRecord {
	rec := &ScoreRecord{
		PlayerID: playerID,
		GameID:   gameID,
		Score:    sql.NullInt32{Int32: int32(score), Valid: true},
	}
	if minutes.Valid {
		rec.Minutes = sql.NullInt32{Int32: int32(minutes.Value), Valid: true}
	}
	return rec
}

// ScoreHistoryRow is one played game contributing to a player's averages
type ScoreHistoryRow struct {
	PlayerID int       `db:"player_id"`
	Score    int       `db:"ttfl_score"`
	GameDate time.Time `db:"game_date"`
}

// PlayerGameScore is one row of a player's season log joined with its game
type PlayerGameScore struct {
	GameID     int           `db:"game_id"`
	GameDate   time.Time     `db:"game_date"`
	HomeTeamID int           `db:"home_team_id"`
	AwayTeamID int           `db:"away_team_id"`
	Score      sql.NullInt32 `db:"ttfl_score"`
	Minutes    sql.NullInt32 `db:"minutes"`
}

// MissingMinutesRow is a score record whose minutes are still absent
type MissingMinutesRow struct {
	ScoreID  int       `db:"id"`
	PlayerID int       `db:"player_id"`
	GameDate time.Time `db:"game_date"`
}

// Averages are a player's rolling fantasy averages
type Averages struct {
	Last15     float64 `json:"avg_ttfl"`
	Last10     float64 `json:"avg_ttfl_l10"`
	Last30Days float64 `json:"avg_ttfl_l30d"`
}
