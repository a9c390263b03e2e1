package repository

import (
	"context"
	"fmt"
	"time"

	"ttfl_tracker/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const gameColumns = `
	g.id, g.nba_game_id, g.home_team_id, g.away_team_id, g.game_date,
	g.start_time_utc, g.status, g.home_score, g.away_score`

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.ID, &g.ExternalID, &g.HomeTeamID, &g.AwayTeamID, &g.GameDate,
		&g.StartTimeUTC, &g.Status, &g.HomeScore, &g.AwayScore,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (db *Database) queryGames(ctx context.Context, query string, args ...any) ([]*models.Game, error) {
	rows, err := db.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

// ListGames retrieves the whole schedule ordered by date
func (db *Database) ListGames(ctx context.Context) (games []*models.Game, err error) {
	start := time.Now()
	defer func() { observe("select", "games", start, err) }()

	return db.queryGames(ctx, `SELECT `+gameColumns+` FROM games g ORDER BY g.game_date, g.id`)
}

// ListNonFinalGames retrieves every game not yet marked final
func (db *Database) ListNonFinalGames(ctx context.Context) (games []*models.Game, err error) {
	start := time.Now()
	defer func() { observe("select", "games", start, err) }()

	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games g WHERE g.status <> $1 ORDER BY g.game_date, g.id`,
		models.StatusFinal,
	)
}

// ListFinalGamesWithoutScores retrieves final games on or after since that
// have no score record at all
func (db *Database) ListFinalGamesWithoutScores(ctx context.Context, since time.Time) (games []*models.Game, err error) {
	start := time.Now()
	defer func() { observe("select", "games", start, err) }()

	query := `
		SELECT ` + gameColumns + `
		FROM games g
		LEFT JOIN ttfl_scores s ON g.id = s.game_id
		WHERE s.id IS NULL
		  AND g.status = $1
		  AND g.game_date >= $2
		ORDER BY g.game_date, g.id
	`

	games, err = db.queryGames(ctx, query, models.StatusFinal, since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query unscored games")
		return nil, err
	}

	log.Debug().Int("count", len(games)).Msg("Unscored final games retrieved")
	return games, nil
}

// ListGamesByDate retrieves the games played on one calendar date
func (db *Database) ListGamesByDate(ctx context.Context, date time.Time) (games []*models.Game, err error) {
	start := time.Now()
	defer func() { observe("select", "games", start, err) }()

	return db.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games g WHERE g.game_date = $1::date ORDER BY g.id`,
		date.Format(models.DateLayout),
	)
}

// UpdateGameResult writes a game's status and scores
func (db *Database) UpdateGameResult(ctx context.Context, gameID int, result models.GameResult) (err error) {
	start := time.Now()
	defer func() { observe("update", "games", start, err) }()

	query := `
		UPDATE games SET
			status = $1,
			home_score = $2,
			away_score = $3
		WHERE id = $4
	`

	tag, err := db.q.Exec(ctx, query, result.Status, result.HomeScore, result.AwayScore, gameID)
	if err != nil {
		return fmt.Errorf("failed to update game result: %w", err)
	}
	return requireRow(tag, fmt.Sprintf("game id=%d", gameID))
}

// UpsertGame inserts or updates a schedule entry by provider id
func (db *Database) UpsertGame(ctx context.Context, g *models.Game) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "games", start, err) }()

	query := `
		INSERT INTO games (
			nba_game_id, home_team_id, away_team_id, game_date,
			start_time_utc, status, home_score, away_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (nba_game_id) DO UPDATE SET
			home_team_id = EXCLUDED.home_team_id,
			away_team_id = EXCLUDED.away_team_id,
			game_date = EXCLUDED.game_date,
			start_time_utc = EXCLUDED.start_time_utc,
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score
		RETURNING id
	`

	err = db.q.QueryRow(ctx, query,
		g.ExternalID, g.HomeTeamID, g.AwayTeamID, g.GameDate,
		g.StartTimeUTC, g.Status, g.HomeScore, g.AwayScore,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}
