package reconcile

import (
	"context"
	"errors"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store"

	"github.com/rs/zerolog"
)

// refreshTeamMetrics overwrites every known team's season metrics with the
// merge of the provider's base, advanced and opponent tables. All three
// fetches must succeed before anything is written.
func (r *run) refreshTeamMetrics(ctx context.Context) (*MetricsResult, error) {
	logger := phaseLogger(ctx, PhaseMetrics)
	res := &MetricsResult{}
	season := r.season()

	base, err := retry.Fetch(ctx, r.slowPolicy("team_stats_base"), func(ctx context.Context) ([]models.TeamBaseStatsInput, error) {
		return r.provider.FetchTeamBaseStats(ctx, season)
	})
	if err != nil {
		return metricsFetchFailed(logger, res, err), nil
	}
	adv, err := retry.Fetch(ctx, r.slowPolicy("team_stats_advanced"), func(ctx context.Context) ([]models.TeamAdvancedStatsInput, error) {
		return r.provider.FetchTeamAdvancedStats(ctx, season)
	})
	if err != nil {
		return metricsFetchFailed(logger, res, err), nil
	}
	opp, err := retry.Fetch(ctx, r.slowPolicy("team_stats_opponent"), func(ctx context.Context) ([]models.TeamOpponentStatsInput, error) {
		return r.provider.FetchTeamOpponentStats(ctx, season)
	})
	if err != nil {
		return metricsFetchFailed(logger, res, err), nil
	}

	lines := models.MergeTeamStats(base, adv, opp)
	if len(lines) == 0 {
		res.Error = "no team stats returned"
		logger.Error().Msg("No team stats returned from provider")
		return res, nil
	}

	at := r.now().UTC()
	err = r.unit(ctx, PhaseMetrics, "update team metrics", func(tx store.Store) error {
		for _, line := range lines {
			team, err := tx.GetTeamByExternalID(ctx, line.ExternalID)
			if errors.Is(err, store.ErrNotFound) {
				logger.Debug().Int("team", line.ExternalID).Str("name", line.Name).Msg("Team not in database")
				res.NotFound++
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.UpdateTeamMetrics(ctx, team.ID, line.Metrics, at); err != nil {
				return err
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	logger.Info().
		Int("updated", res.Updated).
		Int("not_found", res.NotFound).
		Msg("Team metrics refreshed")

	return res, nil
}

func metricsFetchFailed(logger zerolog.Logger, res *MetricsResult, err error) *MetricsResult {
	logger.Error().Err(err).Msg("Failed to fetch team stats")
	res.Error = err.Error()
	return res
}
