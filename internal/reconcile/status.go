package reconcile

import (
	"context"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store"
)

// reconcileStatus overwrites the status of every non-final game that the
// schedule reports differently, and the result once the schedule says final.
// Transitions are not checked for direction.
func (r *run) reconcileStatus(ctx context.Context) (*StatusResult, error) {
	logger := phaseLogger(ctx, PhaseStatus)
	res := &StatusResult{}

	games, err := r.st.ListNonFinalGames(ctx)
	if err != nil {
		return res, storageError(PhaseStatus, "list non-final games", err)
	}
	res.Checked = len(games)
	if len(games) == 0 {
		logger.Debug().Msg("No non-final games")
		return res, nil
	}

	season := r.season()
	schedule, err := retry.Fetch(ctx, r.slowPolicy("schedule"), func(ctx context.Context) ([]models.ScheduleGameInput, error) {
		return r.provider.FetchSchedule(ctx, season)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch schedule")
		res.Error = err.Error()
		return res, nil
	}

	byID := make(map[string]*models.ScheduleGameInput, len(schedule))
	for i := range schedule {
		byID[schedule[i].GameID] = &schedule[i]
	}

	type update struct {
		gameID int
		result models.GameResult
	}
	var updates []update

	for _, g := range games {
		in, ok := byID[g.ExternalID]
		if !ok {
			res.NotInSchedule++
			continue
		}

		current := models.GameResult{Status: g.Status, HomeScore: g.HomeScore, AwayScore: g.AwayScore}
		next := current
		next.Status = in.StatusName()
		if next.Status == models.StatusFinal {
			reported := in.ToGameResult()
			next.HomeScore = reported.HomeScore
			next.AwayScore = reported.AwayScore
		}
		if next == current {
			continue
		}

		updates = append(updates, update{gameID: g.ID, result: next})
		res.Changes = append(res.Changes, gameChange(g, next))
	}

	if len(updates) > 0 {
		err := r.unit(ctx, PhaseStatus, "update game results", func(tx store.Store) error {
			for _, u := range updates {
				if err := tx.UpdateGameResult(ctx, u.gameID, u.result); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	}
	res.Updated = len(updates)

	logger.Info().
		Int("checked", res.Checked).
		Int("updated", res.Updated).
		Int("not_in_schedule", res.NotInSchedule).
		Msg("Game statuses reconciled")

	return res, nil
}

func gameChange(g *models.Game, next models.GameResult) GameChange {
	c := GameChange{GameID: g.ID, ExternalID: g.ExternalID, From: g.Status, To: next.Status}
	if next.HomeScore.Valid {
		v := next.HomeScore.Int32
		c.HomeScore = &v
	}
	if next.AwayScore.Valid {
		v := next.AwayScore.Int32
		c.AwayScore = &v
	}
	return c
}
