package models

import (
	"database/sql"
	"time"
)

// Team represents an NBA franchise
type Team struct {
	ID           int    `db:"id"`
	ExternalID   int    `db:"nba_team_id"`
	Abbreviation string `db:"abbreviation"`
	FullName     string `db:"full_name"`

	TeamMetrics

	StatsUpdatedAt sql.NullTime `db:"stats_updated_at"`
}

// TeamMetrics holds the per-team season metrics replaced wholesale on each refresh
type TeamMetrics struct {
	// Record
	Wins   sql.NullInt32 `db:"wins"`
	Losses sql.NullInt32 `db:"losses"`

	// Advanced
	Pace      sql.NullFloat64 `db:"pace"`
	DefRating sql.NullFloat64 `db:"def_rating"`

	// Allowed to opponents, per game
	OppPPG    sql.NullFloat64 `db:"opp_ppg"`
	OppRPG    sql.NullFloat64 `db:"opp_rpg"`
	OppAPG    sql.NullFloat64 `db:"opp_apg"`
	OppEFGPct sql.NullFloat64 `db:"opp_efg_pct"`
	OppTOV    sql.NullFloat64 `db:"opp_tov"`
	OppSTL    sql.NullFloat64 `db:"opp_stl"`
	OppBLK    sql.NullFloat64 `db:"opp_blk"`
}

// PaceOrZero returns the pace or 0 when it has never been refreshed
func (t *Team) PaceOrZero() float64 {
	if !t.Pace.Valid {
		return 0
	}
	return t.Pace.Float64
}

// DefRatingOrZero returns the defensive rating or 0 when it has never been refreshed
func (t *Team) DefRatingOrZero() float64 {
	if !t.DefRating.Valid {
		return 0
	}
	return t.DefRating.Float64
}

// TeamRosterInput is one entry of a provider roster listing
type TeamRosterInput struct {
	TeamID   int    `json:"TeamID"`
	PlayerID int    `json:"PLAYER_ID"`
	Player   string `json:"PLAYER"`
}

// RosterUpdate describes a correction applied to an existing player
type RosterUpdate struct {
	PlayerID int
	TeamID   int
	Active   bool
	At       time.Time
}
