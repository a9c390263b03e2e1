package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// RunResult reports one sync run. Phase results are nil for phases that
// were not requested or not reached.
type RunResult struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Phases     []Phase   `json:"phases"`
	Error      string    `json:"error,omitempty"`

	Status   *StatusResult  `json:"status,omitempty"`
	Scores   *ScoreResult   `json:"scores,omitempty"`
	Metrics  *MetricsResult `json:"metrics,omitempty"`
	Injuries *InjuryResult  `json:"injuries,omitempty"`
	Minutes  *MinutesResult `json:"minutes,omitempty"`
	Rosters  *RosterResult  `json:"rosters,omitempty"`
}

func (r *RunResult) finish(at time.Time, err error) {
	r.FinishedAt = at.UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

// RowsChanged counts the rows the run wrote, or would have written in a dry run
func (r *RunResult) RowsChanged() int {
	n := 0
	if r.Status != nil {
		n += r.Status.Updated
	}
	if r.Scores != nil {
		n += r.Scores.Inserted()
	}
	if r.Metrics != nil {
		n += r.Metrics.Updated
	}
	if r.Injuries != nil {
		n += r.Injuries.Updated + r.Injuries.Cleared
	}
	if r.Minutes != nil {
		n += r.Minutes.Updated
	}
	if r.Rosters != nil {
		n += r.Rosters.Moved + r.Rosters.Deactivated
	}
	return n
}

// GameChange is one status or result overwrite
type GameChange struct {
	GameID     int    `json:"game_id"`
	ExternalID string `json:"nba_game_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	HomeScore  *int32 `json:"home_score,omitempty"`
	AwayScore  *int32 `json:"away_score,omitempty"`
}

// StatusResult reports the status reconciliation phase
type StatusResult struct {
	Checked       int          `json:"checked"`
	Updated       int          `json:"updated"`
	NotInSchedule int          `json:"not_in_schedule"`
	Changes       []GameChange `json:"changes,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// ScoreResult reports the score backfill phase
type ScoreResult struct {
	GamesQueued       int `json:"games_queued"`
	GamesViaBoxScore  int `json:"games_via_box_score"`
	GamesFallback     int `json:"games_fallback"`
	BoxScoreInserted  int `json:"box_score_inserted"`
	FallbackInserted  int `json:"fallback_inserted"`
	SkippedExisting   int `json:"skipped_existing"`
	UnknownPlayers    int `json:"unknown_players"`
	FallbackPlayers   int `json:"fallback_players"`
	FallbackFetchErrs int `json:"fallback_fetch_errors"`

	Error string `json:"error,omitempty"`
}

// Inserted is the total number of new score records
func (r *ScoreResult) Inserted() int {
	return r.BoxScoreInserted + r.FallbackInserted
}

// MetricsResult reports the team metric refresh phase
type MetricsResult struct {
	Updated  int    `json:"updated"`
	NotFound int    `json:"not_found"`
	Error    string `json:"error,omitempty"`
}

// InjuryResult reports the injury refresh phase
type InjuryResult struct {
	Updated  int      `json:"updated"`
	Cleared  int      `json:"cleared"`
	NotFound []string `json:"not_found"`
	NoData   bool     `json:"no_data"`
	Error    string   `json:"error,omitempty"`
}

// MinutesResult reports the minutes backfill phase
type MinutesResult struct {
	Players     int    `json:"players"`
	Updated     int    `json:"updated"`
	Unmatched   int    `json:"unmatched"`
	FetchErrors int    `json:"fetch_errors"`
	Error       string `json:"error,omitempty"`
}

// RosterResult reports the roster refresh phase
type RosterResult struct {
	Teams       int    `json:"teams"`
	Moved       int    `json:"moved"`
	Deactivated int    `json:"deactivated"`
	NotFound    int    `json:"not_found"`
	FetchErrors int    `json:"fetch_errors"`
	Error       string `json:"error,omitempty"`
}
