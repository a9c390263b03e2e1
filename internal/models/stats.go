package models

import (
	"database/sql"
	"time"
)

// TeamBaseStatsInput is one row of the provider's base team stats (record)
type TeamBaseStatsInput struct {
	TeamID   int    `json:"TEAM_ID"`
	TeamName string `json:"TEAM_NAME"`
	Wins     int    `json:"W"`
	Losses   int    `json:"L"`
}

// TeamAdvancedStatsInput is one row of the provider's advanced team stats
type TeamAdvancedStatsInput struct {
	TeamID    int     `json:"TEAM_ID"`
	Pace      float64 `json:"PACE"`
	DefRating float64 `json:"DEF_RATING"`
}

// TeamOpponentStatsInput is one row of the provider's per-game opponent stats
type TeamOpponentStatsInput struct {
	TeamID  int     `json:"TEAM_ID"`
	OppPTS  float64 `json:"OPP_PTS"`
	OppREB  float64 `json:"OPP_REB"`
	OppAST  float64 `json:"OPP_AST"`
	OppTOV  float64 `json:"OPP_TOV"`
	OppSTL  float64 `json:"OPP_STL"`
	OppBLK  float64 `json:"OPP_BLK"`
	OppFGM  float64 `json:"OPP_FGM"`
	OppFGA  float64 `json:"OPP_FGA"`
	OppFG3M float64 `json:"OPP_FG3M"`
}

// EffectiveFGPct returns (fgm + 0.5*fg3m) / fga, or 0 when no attempts were made
func (o *TeamOpponentStatsInput) EffectiveFGPct() float64 {
	if o.OppFGA == 0 {
		return 0
	}
	return (o.OppFGM + 0.5*o.OppFG3M) / o.OppFGA
}

// TeamStatsLine is the merged metrics of one team keyed by its external id
type TeamStatsLine struct {
	ExternalID int
	Name       string
	Metrics    TeamMetrics
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// MergeTeamStats joins the three provider tables on the external team id.
// Teams missing from the advanced or opponent tables keep those metrics null.
func MergeTeamStats(base []TeamBaseStatsInput, adv []TeamAdvancedStatsInput, opp []TeamOpponentStatsInput) []TeamStatsLine {
	advByID := make(map[int]TeamAdvancedStatsInput, len(adv))
	for _, a := range adv {
		advByID[a.TeamID] = a
	}
	oppByID := make(map[int]TeamOpponentStatsInput, len(opp))
	for _, o := range opp {
		oppByID[o.TeamID] = o
	}

	lines := make([]TeamStatsLine, 0, len(base))
	for _, b := range base {
		m := TeamMetrics{
			Wins:   sql.NullInt32{Int32: int32(b.Wins), Valid: true},
			Losses: sql.NullInt32{Int32: int32(b.Losses), Valid: true},
		}
		if a, ok := advByID[b.TeamID]; ok {
			m.Pace = nullFloat(a.Pace)
			m.DefRating = nullFloat(a.DefRating)
		}
		if o, ok := oppByID[b.TeamID]; ok {
			m.OppPPG = nullFloat(o.OppPTS)
			m.OppRPG = nullFloat(o.OppREB)
			m.OppAPG = nullFloat(o.OppAST)
			m.OppEFGPct = nullFloat(o.EffectiveFGPct())
			m.OppTOV = nullFloat(o.OppTOV)
			m.OppSTL = nullFloat(o.OppSTL)
			m.OppBLK = nullFloat(o.OppBLK)
		}
		lines = append(lines, TeamStatsLine{ExternalID: b.TeamID, Name: b.TeamName, Metrics: m})
	}
	return lines
}

// Metadata keys
const (
	MetadataInjuryUpdatedAt = "injury_updated_at"
)

// Metadata is a key/value row of app metadata
type Metadata struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
