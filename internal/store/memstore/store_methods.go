package memstore

import (
	"context"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store"
)

var _ store.Store = (*Store)(nil)

func (m *Store) ListTeams(ctx context.Context) ([]*models.Team, error) {
	return m.root().ListTeams(ctx)
}

func (m *Store) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	return m.root().ListPlayers(ctx)
}

func (m *Store) ListGames(ctx context.Context) ([]*models.Game, error) {
	return m.root().ListGames(ctx)
}

func (m *Store) ScoreHistory(ctx context.Context, playerIDs []int) ([]models.ScoreHistoryRow, error) {
	return m.root().ScoreHistory(ctx, playerIDs)
}

func (m *Store) PlayerScores(ctx context.Context, playerID int) ([]models.PlayerGameScore, error) {
	return m.root().PlayerScores(ctx, playerID)
}

func (m *Store) GetTeamByExternalID(ctx context.Context, externalID int) (*models.Team, error) {
	return m.root().GetTeamByExternalID(ctx, externalID)
}

func (m *Store) UpdateTeamMetrics(ctx context.Context, teamID int, metrics models.TeamMetrics, at time.Time) error {
	return m.root().UpdateTeamMetrics(ctx, teamID, metrics, at)
}

func (m *Store) GetPlayerByExternalID(ctx context.Context, externalID int) (*models.Player, error) {
	return m.root().GetPlayerByExternalID(ctx, externalID)
}

func (m *Store) ListActivePlayersByTeams(ctx context.Context, teamIDs []int) ([]*models.Player, error) {
	return m.root().ListActivePlayersByTeams(ctx, teamIDs)
}

func (m *Store) UpdatePlayerInjury(ctx context.Context, playerID int, injury models.Injury) error {
	return m.root().UpdatePlayerInjury(ctx, playerID, injury)
}

func (m *Store) UpdatePlayerRoster(ctx context.Context, playerID, teamID int, active bool) error {
	return m.root().UpdatePlayerRoster(ctx, playerID, teamID, active)
}

func (m *Store) ListNonFinalGames(ctx context.Context) ([]*models.Game, error) {
	return m.root().ListNonFinalGames(ctx)
}

func (m *Store) ListFinalGamesWithoutScores(ctx context.Context, since time.Time) ([]*models.Game, error) {
	return m.root().ListFinalGamesWithoutScores(ctx, since)
}

func (m *Store) ListGamesByDate(ctx context.Context, date time.Time) ([]*models.Game, error) {
	return m.root().ListGamesByDate(ctx, date)
}

func (m *Store) UpdateGameResult(ctx context.Context, gameID int, result models.GameResult) error {
	return m.root().UpdateGameResult(ctx, gameID, result)
}

func (m *Store) ScoreExists(ctx context.Context, playerID, gameID int) (bool, error) {
	return m.root().ScoreExists(ctx, playerID, gameID)
}

func (m *Store) InsertScore(ctx context.Context, score *models.ScoreRecord) error {
	return m.root().InsertScore(ctx, score)
}

func (m *Store) ListScoresMissingMinutes(ctx context.Context) ([]models.MissingMinutesRow, error) {
	return m.root().ListScoresMissingMinutes(ctx)
}

func (m *Store) UpdateScoreMinutes(ctx context.Context, scoreID, minutes int) error {
	return m.root().UpdateScoreMinutes(ctx, scoreID, minutes)
}

func (m *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	return m.root().GetMetadata(ctx, key)
}

func (m *Store) SetMetadata(ctx context.Context, key, value string) error {
	return m.root().SetMetadata(ctx, key, value)
}

func (m *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return m.root().WithinTx(ctx, fn)
}

func (m *Store) WithinReadTx(ctx context.Context, fn func(tx store.Store) error) error {
	return m.root().WithinReadTx(ctx, fn)
}
