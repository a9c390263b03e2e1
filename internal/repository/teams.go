package repository

import (
	"context"
	"fmt"
	"time"

	"ttfl_tracker/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const teamColumns = `
	id, nba_team_id, abbreviation, full_name,
	wins, losses, pace, def_rating,
	opp_ppg, opp_rpg, opp_apg, opp_efg_pct, opp_tov, opp_stl, opp_blk,
	stats_updated_at`

func scanTeam(row pgx.Row) (*models.Team, error) {
	var team models.Team
	err := row.Scan(
		&team.ID, &team.ExternalID, &team.Abbreviation, &team.FullName,
		&team.Wins, &team.Losses, &team.Pace, &team.DefRating,
		&team.OppPPG, &team.OppRPG, &team.OppAPG, &team.OppEFGPct,
		&team.OppTOV, &team.OppSTL, &team.OppBLK,
		&team.StatsUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// ListTeams retrieves all teams
func (db *Database) ListTeams(ctx context.Context) (teams []*models.Team, err error) {
	start := time.Now()
	defer func() { observe("select", "teams", start, err) }()

	rows, err := db.q.Query(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}

// GetTeamByExternalID retrieves a team by its provider id
func (db *Database) GetTeamByExternalID(ctx context.Context, externalID int) (team *models.Team, err error) {
	start := time.Now()
	defer func() { observe("select", "teams", start, err) }()

	team, err = scanTeam(db.q.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE nba_team_id = $1`, externalID))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("team nba_team_id=%d", externalID))
	}
	return team, nil
}

// UpdateTeamMetrics replaces every metric column of a team
func (db *Database) UpdateTeamMetrics(ctx context.Context, teamID int, m models.TeamMetrics, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update", "teams", start, err) }()

	query := `
		UPDATE teams SET
			wins = $1,
			losses = $2,
			pace = $3,
			def_rating = $4,
			opp_ppg = $5,
			opp_rpg = $6,
			opp_apg = $7,
			opp_efg_pct = $8,
			opp_tov = $9,
			opp_stl = $10,
			opp_blk = $11,
			stats_updated_at = $12
		WHERE id = $13
	`

	tag, err := db.q.Exec(ctx, query,
		m.Wins, m.Losses, m.Pace, m.DefRating,
		m.OppPPG, m.OppRPG, m.OppAPG, m.OppEFGPct, m.OppTOV, m.OppSTL, m.OppBLK,
		at, teamID,
	)
	if err != nil {
		return fmt.Errorf("failed to update team metrics: %w", err)
	}
	if err := requireRow(tag, fmt.Sprintf("team id=%d", teamID)); err != nil {
		return err
	}

	log.Debug().Int("team_id", teamID).Msg("Team metrics updated")
	return nil
}

// UpsertTeam inserts or updates a team's identity columns by provider id
func (db *Database) UpsertTeam(ctx context.Context, team *models.Team) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "teams", start, err) }()

	query := `
		INSERT INTO teams (nba_team_id, abbreviation, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (nba_team_id) DO UPDATE SET
			abbreviation = EXCLUDED.abbreviation,
			full_name = EXCLUDED.full_name
		RETURNING id
	`

	if err = db.q.QueryRow(ctx, query, team.ExternalID, team.Abbreviation, team.FullName).Scan(&team.ID); err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}
	return nil
}
