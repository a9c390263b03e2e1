package reconcile

import (
	"context"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store"
)

// backfillMinutes fills in absent minutes from each affected player's full
// season game log, matched on game date
func (r *run) backfillMinutes(ctx context.Context) (*MinutesResult, error) {
	logger := phaseLogger(ctx, PhaseMinutes)
	res := &MinutesResult{}

	missing, err := r.st.ListScoresMissingMinutes(ctx)
	if err != nil {
		return res, storageError(PhaseMinutes, "list scores missing minutes", err)
	}
	if len(missing) == 0 {
		logger.Debug().Msg("No scores missing minutes")
		return res, nil
	}

	players, err := r.st.ListPlayers(ctx)
	if err != nil {
		return res, storageError(PhaseMinutes, "list players", err)
	}
	byID := make(map[int]*models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	byPlayer := make(map[int][]models.MissingMinutesRow)
	var order []int
	for _, row := range missing {
		if _, ok := byPlayer[row.PlayerID]; !ok {
			order = append(order, row.PlayerID)
		}
		byPlayer[row.PlayerID] = append(byPlayer[row.PlayerID], row)
	}
	res.Players = len(order)

	season := r.season()
	var lastErr error
	for _, playerID := range order {
		p, ok := byID[playerID]
		if !ok {
			continue
		}

		logs, err := retry.Fetch(ctx, r.policy("game_log"), func(ctx context.Context) ([]models.GameLogInput, error) {
			return r.provider.FetchPlayerGameLog(ctx, p.ExternalID, season, 0)
		})
		if err != nil {
			logger.Warn().Err(err).Int("player", p.ExternalID).Msg("Failed to fetch game log")
			res.FetchErrors++
			lastErr = err
			continue
		}

		minutesByDate := make(map[string]int, len(logs))
		for i := range logs {
			date, err := logs[i].Date()
			if err != nil {
				continue
			}
			minutesByDate[date.Format(models.DateLayout)] = logs[i].Minutes.Value
		}

		err = r.unit(ctx, PhaseMinutes, "update score minutes", func(tx store.Store) error {
			for _, row := range byPlayer[playerID] {
				m, ok := minutesByDate[row.GameDate.Format(models.DateLayout)]
				if !ok {
					res.Unmatched++
					continue
				}
				if err := tx.UpdateScoreMinutes(ctx, row.ScoreID, m); err != nil {
					return err
				}
				res.Updated++
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	}

	if res.FetchErrors > 0 && res.Updated == 0 && lastErr != nil {
		res.Error = lastErr.Error()
	}
	if res.Updated > 0 {
		r.invalidate(ctx)
	}

	logger.Info().
		Int("players", res.Players).
		Int("updated", res.Updated).
		Int("unmatched", res.Unmatched).
		Int("fetch_errors", res.FetchErrors).
		Msg("Minutes backfill complete")

	return res, nil
}
