package models

import (
	"database/sql"
	"time"
)

// Game status values stored on a game row
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusFinal     = "final"
)

// DateLayout is the calendar-date format used for date keys and query parameters
const DateLayout = "2006-01-02"

// Game represents a scheduled NBA game
type Game struct {
	ID           int           `db:"id"`
	ExternalID   string        `db:"nba_game_id"`
	HomeTeamID   int           `db:"home_team_id"`
	AwayTeamID   int           `db:"away_team_id"`
	GameDate     time.Time     `db:"game_date"`
	StartTimeUTC sql.NullTime  `db:"start_time_utc"`
	Status       string        `db:"status"`
	HomeScore    sql.NullInt32 `db:"home_score"`
	AwayScore    sql.NullInt32 `db:"away_score"`
}

// IsFinal reports whether the game has finished
func (g *Game) IsFinal() bool {
	return g.Status == StatusFinal
}

// DateKey returns the calendar date of the game as YYYY-MM-DD
func (g *Game) DateKey() string {
	return g.GameDate.Format(DateLayout)
}

// OpponentOf returns the other side of the game for teamID and whether teamID is at home
func (g *Game) OpponentOf(teamID int) (int, bool) {
	if g.HomeTeamID == teamID {
		return g.AwayTeamID, true
	}
	return g.HomeTeamID, false
}

// GameResult is the status and score pair written during status reconciliation
type GameResult struct {
	Status    string
	HomeScore sql.NullInt32
	AwayScore sql.NullInt32
}

// ScheduleGameInput is one game of the provider's season schedule
type ScheduleGameInput struct {
	GameID          string `json:"gameId"`
	GameStatus      int    `json:"gameStatus"`
	GameStatusText  string `json:"gameStatusText"`
	GameDateTimeUTC string `json:"gameDateTimeUTC"`
	HomeTeamID      int    `json:"homeTeam_teamId"`
	AwayTeamID      int    `json:"awayTeam_teamId"`
	HomeTeamScore   *int   `json:"homeTeam_score,omitempty"`
	AwayTeamScore   *int   `json:"awayTeam_score,omitempty"`
}

// StatusName maps the provider's numeric status to a stored status:
// 3 is final, 2 is live, anything else is scheduled.
func (gi *ScheduleGameInput) StatusName() string {
	switch gi.GameStatus {
	case 3:
		return StatusFinal
	case 2:
		return StatusLive
	default:
		return StatusScheduled
	}
}

// ToGameResult converts the schedule entry to the status and scores it reports
func (gi *ScheduleGameInput) ToGameResult() GameResult {
	result := GameResult{Status: gi.StatusName()}
	if gi.HomeTeamScore != nil {
		result.HomeScore = sql.NullInt32{Int32: int32(*gi.HomeTeamScore), Valid: true}
	}
	if gi.AwayTeamScore != nil {
		result.AwayScore = sql.NullInt32{Int32: int32(*gi.AwayTeamScore), Valid: true}
	}
	return result
}
