package repository

import (
	"context"
	"fmt"
	"time"

	"ttfl_tracker/ingestion/internal/models"
)

// ScoreHistory returns played games (non-null score, minutes > 0) for the
// given players, newest first within each player
func (db *Database) ScoreHistory(ctx context.Context, playerIDs []int) (history []models.ScoreHistoryRow, err error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { observe("select", "ttfl_scores", start, err) }()

	query := `
		SELECT s.player_id, s.ttfl_score, g.game_date
		FROM ttfl_scores s
		JOIN games g ON g.id = s.game_id
		WHERE s.player_id = ANY($1)
		  AND s.ttfl_score IS NOT NULL
		  AND s.minutes > 0
		ORDER BY s.player_id, g.game_date DESC, s.id DESC
	`

	rows, err := db.q.Query(ctx, query, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.ScoreHistoryRow
		if err := rows.Scan(&r.PlayerID, &r.Score, &r.GameDate); err != nil {
			return nil, fmt.Errorf("failed to scan score history: %w", err)
		}
		history = append(history, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score history: %w", err)
	}
	return history, nil
}

// PlayerScores returns every score record of one player joined with its game
func (db *Database) PlayerScores(ctx context.Context, playerID int) (scores []models.PlayerGameScore, err error) {
	start := time.Now()
	defer func() { observe("select", "ttfl_scores", start, err) }()

	query := `
		SELECT g.id, g.game_date, g.home_team_id, g.away_team_id, s.ttfl_score, s.minutes
		FROM ttfl_scores s
		JOIN games g ON g.id = s.game_id
		WHERE s.player_id = $1
		ORDER BY g.game_date DESC
	`

	rows, err := db.q.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query player scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.PlayerGameScore
		if err := rows.Scan(&r.GameID, &r.GameDate, &r.HomeTeamID, &r.AwayTeamID, &r.Score, &r.Minutes); err != nil {
			return nil, fmt.Errorf("failed to scan player score: %w", err)
		}
		scores = append(scores, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player scores: %w", err)
	}
	return scores, nil
}

// ScoreExists reports whether a record exists for the (player, game) pair
func (db *Database) ScoreExists(ctx context.Context, playerID, gameID int) (exists bool, err error) {
	start := time.Now()
	defer func() { observe("select", "ttfl_scores", start, err) }()

	err = db.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ttfl_scores WHERE player_id = $1 AND game_id = $2)`,
		playerID, gameID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check score: %w", err)
	}
	return exists, nil
}

// InsertScore inserts a new score record. A duplicate (player, game) pair
// violates uq_player_game and fails.
func (db *Database) InsertScore(ctx context.Context, score *models.ScoreRecord) (err error) {
	start := time.Now()
	defer func() { observe("insert", "ttfl_scores", start, err) }()

	query := `
		INSERT INTO ttfl_scores (player_id, game_id, ttfl_score, minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err = db.q.QueryRow(ctx, query, score.PlayerID, score.GameID, score.Score, score.Minutes).
		Scan(&score.ID, &score.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

// ListScoresMissingMinutes returns score records whose minutes are null
func (db *Database) ListScoresMissingMinutes(ctx context.Context) (missing []models.MissingMinutesRow, err error) {
	start := time.Now()
	defer func() { observe("select", "ttfl_scores", start, err) }()

	query := `
		SELECT s.id, s.player_id, g.game_date
		FROM ttfl_scores s
		JOIN games g ON g.id = s.game_id
		WHERE s.minutes IS NULL
		ORDER BY s.player_id, s.id
	`

	rows, err := db.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores missing minutes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.MissingMinutesRow
		if err := rows.Scan(&r.ScoreID, &r.PlayerID, &r.GameDate); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		missing = append(missing, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return missing, nil
}

// UpdateScoreMinutes fills in the minutes of an existing record
func (db *Database) UpdateScoreMinutes(ctx context.Context, scoreID, minutes int) (err error) {
	start := time.Now()
	defer func() { observe("update", "ttfl_scores", start, err) }()

	tag, err := db.q.Exec(ctx,
		`UPDATE ttfl_scores SET minutes = $1, updated_at = NOW() WHERE id = $2`,
		minutes, scoreID,
	)
	if err != nil {
		return fmt.Errorf("failed to update score minutes: %w", err)
	}
	return requireRow(tag, fmt.Sprintf("score id=%d", scoreID))
}
