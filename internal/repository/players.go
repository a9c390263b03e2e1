package repository

import (
	"context"
	"fmt"
	"time"

	"ttfl_tracker/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const playerColumns = `
	id, nba_player_id, name, COALESCE(team_id, 0), is_active,
	injury_status, injury_return_date, injury_details`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Name, &p.TeamID, &p.IsActive,
		&p.Injury.Status, &p.Injury.ReturnDate, &p.Injury.Details,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *Database) queryPlayers(ctx context.Context, query string, args ...any) ([]*models.Player, error) {
	rows, err := db.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}
	return players, nil
}

// ListPlayers retrieves every player, active or not
func (db *Database) ListPlayers(ctx context.Context) (players []*models.Player, err error) {
	start := time.Now()
	defer func() { observe("select", "players", start, err) }()

	return db.queryPlayers(ctx, `SELECT `+playerColumns+` FROM players ORDER BY id`)
}

// ListActivePlayersByTeams retrieves active players on any of the given teams
func (db *Database) ListActivePlayersByTeams(ctx context.Context, teamIDs []int) (players []*models.Player, err error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { observe("select", "players", start, err) }()

	return db.queryPlayers(ctx,
		`SELECT `+playerColumns+` FROM players WHERE is_active AND team_id = ANY($1) ORDER BY id`,
		teamIDs,
	)
}

// GetPlayerByExternalID retrieves a player by provider id
func (db *Database) GetPlayerByExternalID(ctx context.Context, externalID int) (player *models.Player, err error) {
	start := time.Now()
	defer func() { observe("select", "players", start, err) }()

	player, err = scanPlayer(db.q.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE nba_player_id = $1`, externalID))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("player nba_player_id=%d", externalID))
	}
	return player, nil
}

// UpdatePlayerInjury replaces the three injury columns of a player
func (db *Database) UpdatePlayerInjury(ctx context.Context, playerID int, injury models.Injury) (err error) {
	start := time.Now()
	defer func() { observe("update", "players", start, err) }()

	query := `
		UPDATE players SET
			injury_status = $1,
			injury_return_date = $2,
			injury_details = $3
		WHERE id = $4
	`

	tag, err := db.q.Exec(ctx, query, injury.Status, injury.ReturnDate, injury.Details, playerID)
	if err != nil {
		return fmt.Errorf("failed to update player injury: %w", err)
	}
	return requireRow(tag, fmt.Sprintf("player id=%d", playerID))
}

// UpdatePlayerRoster moves a player to a team and sets its active flag
func (db *Database) UpdatePlayerRoster(ctx context.Context, playerID, teamID int, active bool) (err error) {
	start := time.Now()
	defer func() { observe("update", "players", start, err) }()

	tag, err := db.q.Exec(ctx,
		`UPDATE players SET team_id = NULLIF($1, 0), is_active = $2 WHERE id = $3`,
		teamID, active, playerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player roster: %w", err)
	}
	if err := requireRow(tag, fmt.Sprintf("player id=%d", playerID)); err != nil {
		return err
	}

	log.Debug().
		Int("player_id", playerID).
		Int("team_id", teamID).
		Bool("active", active).
		Msg("Player roster updated")
	return nil
}

// UpsertPlayer inserts or updates a player's identity columns by provider id
func (db *Database) UpsertPlayer(ctx context.Context, p *models.Player) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "players", start, err) }()

	query := `
		INSERT INTO players (nba_player_id, name, team_id, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (nba_player_id) DO UPDATE SET
			name = EXCLUDED.name,
			team_id = EXCLUDED.team_id,
			is_active = EXCLUDED.is_active
		RETURNING id
	`

	if err = db.q.QueryRow(ctx, query, p.ExternalID, p.Name, p.TeamID, p.IsActive).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}
