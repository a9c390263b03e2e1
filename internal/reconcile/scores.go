package reconcile

import (
	"context"
	"errors"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/scoring"
	"ttfl_tracker/ingestion/internal/store"
)

// errNoBoxScore queues a game whose box score came back empty
var errNoBoxScore = errors.New("empty box score")

// fallbackKey matches a game log entry to a queued game
type fallbackKey struct {
	date   string
	teamID int
}

// backfillScores inserts score records for final games that have none.
// Box scores are tried per game; games whose box score is unavailable are
// filled from the game logs of the active players of both teams.
func (r *run) backfillScores(ctx context.Context) (*ScoreResult, error) {
	logger := phaseLogger(ctx, PhaseScores)
	res := &ScoreResult{}

	since := r.seasonStart()
	games, err := r.st.ListFinalGamesWithoutScores(ctx, since)
	if err != nil {
		return res, storageError(PhaseScores, "list unscored games", err)
	}
	res.GamesQueued = len(games)
	if len(games) == 0 {
		logger.Debug().Msg("No games needing scores")
		return res, nil
	}

	players, err := r.st.ListPlayers(ctx)
	if err != nil {
		return res, storageError(PhaseScores, "list players", err)
	}
	byExternal := make(map[int]*models.Player, len(players))
	for _, p := range players {
		byExternal[p.ExternalID] = p
	}

	logger.Info().Int("games", len(games)).Msg("Backfilling scores from box scores")

	var queued []*models.Game
	for _, g := range games {
		lines, err := retry.Fetch(ctx, r.policy("box_score"), func(ctx context.Context) ([]models.BoxScoreLineInput, error) {
			lines, err := r.provider.FetchBoxScore(ctx, g.ExternalID)
			if err == nil && len(lines) == 0 {
				return nil, errNoBoxScore
			}
			return lines, err
		})
		if err != nil {
			logger.Warn().Err(err).Str("game", g.ExternalID).Msg("Box score unavailable, queued for game log fallback")
			queued = append(queued, g)
			continue
		}

		err = r.unit(ctx, PhaseScores, "insert box score", func(tx store.Store) error {
			for i := range lines {
				p, ok := byExternal[lines[i].PlayerID]
				if !ok {
					res.UnknownPlayers++
					continue
				}
				score := scoring.Calculate(lines[i].ToStatLine())
				inserted, err := insertIfMissing(ctx, tx, models.NewScoreRecord(p.ID, g.ID, score, lines[i].Minutes))
				if err != nil {
					return err
				}
				if inserted {
					res.BoxScoreInserted++
				} else {
					res.SkippedExisting++
				}
			}
			return nil
		})
		if err != nil {
			return res, err
		}
		res.GamesViaBoxScore++
	}

	if len(queued) > 0 {
		if err := r.fallbackScores(ctx, queued, since, res); err != nil {
			return res, err
		}
	}

	if !r.dryRun {
		metrics.RecordScoresInserted("box_score", res.BoxScoreInserted)
		metrics.RecordScoresInserted("game_log", res.FallbackInserted)
	}
	if res.Inserted() > 0 {
		r.invalidate(ctx)
	}

	logger.Info().
		Int("games_via_box_score", res.GamesViaBoxScore).
		Int("games_fallback", res.GamesFallback).
		Int("inserted", res.Inserted()).
		Int("skipped_existing", res.SkippedExisting).
		Int("unknown_players", res.UnknownPlayers).
		Msg("Score backfill complete")

	return res, nil
}

// fallbackScores fetches each relevant player's recent game log once and
// inserts the entries that land on a queued game of the player's team.
// Game logs carry no usable minutes, so those records are left without.
func (r *run) fallbackScores(ctx context.Context, queued []*models.Game, since time.Time, res *ScoreResult) error {
	logger := phaseLogger(ctx, PhaseScores)
	res.GamesFallback = len(queued)

	lookup := make(map[fallbackKey]*models.Game, 2*len(queued))
	var teamIDs []int
	seenTeam := make(map[int]bool)
	for _, g := range queued {
		date := g.DateKey()
		lookup[fallbackKey{date: date, teamID: g.HomeTeamID}] = g
		lookup[fallbackKey{date: date, teamID: g.AwayTeamID}] = g
		for _, id := range []int{g.HomeTeamID, g.AwayTeamID} {
			if !seenTeam[id] {
				seenTeam[id] = true
				teamIDs = append(teamIDs, id)
			}
		}
	}

	players, err := r.st.ListActivePlayersByTeams(ctx, teamIDs)
	if err != nil {
		return storageError(PhaseScores, "list active players", err)
	}
	res.FallbackPlayers = len(players)

	logger.Info().
		Int("games", len(queued)).
		Int("players", len(players)).
		Msg("Falling back to player game logs")

	season := r.season()
	for _, p := range players {
		logs, err := retry.Fetch(ctx, r.policy("game_log"), func(ctx context.Context) ([]models.GameLogInput, error) {
			return r.provider.FetchPlayerGameLog(ctx, p.ExternalID, season, r.cfg.FallbackRecentGames)
		})
		if err != nil {
			logger.Warn().Err(err).Int("player", p.ExternalID).Msg("Failed to fetch game log")
			res.FallbackFetchErrs++
			continue
		}

		err = r.unit(ctx, PhaseScores, "insert game log scores", func(tx store.Store) error {
			for i := range logs {
				date, err := logs[i].Date()
				if err != nil || date.Before(since) {
					continue
				}
				g, ok := lookup[fallbackKey{date: date.Format(models.DateLayout), teamID: p.TeamID}]
				if !ok {
					continue
				}
				score := scoring.Calculate(logs[i].ToStatLine())
				inserted, err := insertIfMissing(ctx, tx, models.NewScoreRecord(p.ID, g.ID, score, models.Minutes{}))
				if err != nil {
					return err
				}
				if inserted {
					res.FallbackInserted++
				} else {
					res.SkippedExisting++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// insertIfMissing inserts rec unless its (player, game) pair is already stored
func insertIfMissing(ctx context.Context, tx store.Store, rec *models.ScoreRecord) (bool, error) {
	exists, err := tx.ScoreExists(ctx, rec.PlayerID, rec.GameID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := tx.InsertScore(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}
