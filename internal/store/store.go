// Package store defines the durable-storage boundary consumed by the
// reconciliation pipeline, the read cache, and the stats engine.
package store

import (
	"context"
	"errors"
	"time"

	"ttfl_tracker/ingestion/internal/models"
)

// ErrNotFound is returned when a referenced row does not exist
var ErrNotFound = errors.New("not found")

// ReferenceReader is the bulk read backing the read cache
type ReferenceReader interface {
	ListTeams(ctx context.Context) ([]*models.Team, error)
	ListPlayers(ctx context.Context) ([]*models.Player, error)
	ListGames(ctx context.Context) ([]*models.Game, error)
}

// ScoreReader serves the score history behind the averages
type ScoreReader interface {
	// ScoreHistory returns played games (non-null score, minutes > 0) for the
	// given players ordered by player id then game date descending.
	ScoreHistory(ctx context.Context, playerIDs []int) ([]models.ScoreHistoryRow, error)
	// PlayerScores returns every score row of one player, newest first
	PlayerScores(ctx context.Context, playerID int) ([]models.PlayerGameScore, error)
}

// Store is the full storage boundary. Implementations bound to a transaction
// are returned by WithinTx; nested WithinTx calls reuse the outer transaction.
type Store interface {
	ReferenceReader
	ScoreReader

	GetTeamByExternalID(ctx context.Context, externalID int) (*models.Team, error)
	UpdateTeamMetrics(ctx context.Context, teamID int, metrics models.TeamMetrics, at time.Time) error

	GetPlayerByExternalID(ctx context.Context, externalID int) (*models.Player, error)
	ListActivePlayersByTeams(ctx context.Context, teamIDs []int) ([]*models.Player, error)
	UpdatePlayerInjury(ctx context.Context, playerID int, injury models.Injury) error
	UpdatePlayerRoster(ctx context.Context, playerID, teamID int, active bool) error

	ListNonFinalGames(ctx context.Context) ([]*models.Game, error)
	ListFinalGamesWithoutScores(ctx context.Context, since time.Time) ([]*models.Game, error)
	ListGamesByDate(ctx context.Context, date time.Time) ([]*models.Game, error)
	UpdateGameResult(ctx context.Context, gameID int, result models.GameResult) error

	ScoreExists(ctx context.Context, playerID, gameID int) (bool, error)
	InsertScore(ctx context.Context, score *models.ScoreRecord) error
	ListScoresMissingMinutes(ctx context.Context) ([]models.MissingMinutesRow, error)
	UpdateScoreMinutes(ctx context.Context, scoreID, minutes int) error

	GetMetadata(ctx context.Context, key string) (string, bool, error)
	SetMetadata(ctx context.Context, key, value string) error

	// WithinTx runs fn against a transaction-bound Store. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	// WithinReadTx runs fn against a read-only view that is consistent
	// across every statement fn issues.
	WithinReadTx(ctx context.Context, fn func(tx Store) error) error
}
