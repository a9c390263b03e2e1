package reconcile

import (
	"context"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store"
)

type rosterChange struct {
	playerID int
	teamID   int
	active   bool
}

// refreshRosters moves known players to the team whose roster lists them
// and reactivates them. Players on no roster are deactivated, but only when
// every roster was fetched. Rows are never created.
func (r *run) refreshRosters(ctx context.Context) (*RosterResult, error) {
	logger := phaseLogger(ctx, PhaseRosters)
	res := &RosterResult{}

	teams, err := r.st.ListTeams(ctx)
	if err != nil {
		return res, storageError(PhaseRosters, "list teams", err)
	}
	players, err := r.st.ListPlayers(ctx)
	if err != nil {
		return res, storageError(PhaseRosters, "list players", err)
	}
	res.Teams = len(teams)

	byExternal := make(map[int]*models.Player, len(players))
	for _, p := range players {
		byExternal[p.ExternalID] = p
	}

	season := r.season()
	// player id -> team id of the last roster listing the player
	rosteredOn := make(map[int]int, len(players))

	for _, team := range teams {
		roster, err := retry.Fetch(ctx, r.policy("roster"), func(ctx context.Context) ([]models.TeamRosterInput, error) {
			return r.provider.FetchRoster(ctx, team.ExternalID, season)
		})
		if err != nil {
			logger.Warn().Err(err).Str("team", team.Abbreviation).Msg("Failed to fetch roster")
			res.FetchErrors++
			res.Error = err.Error()
			continue
		}

		for _, entry := range roster {
			p, ok := byExternal[entry.PlayerID]
			if !ok {
				res.NotFound++
				continue
			}
			rosteredOn[p.ID] = team.ID
		}
	}

	var changes []rosterChange
	for _, p := range players {
		teamID, listed := rosteredOn[p.ID]
		switch {
		case listed && (p.TeamID != teamID || !p.IsActive):
			changes = append(changes, rosterChange{playerID: p.ID, teamID: teamID, active: true})
			res.Moved++
		case !listed && p.IsActive && res.FetchErrors == 0:
			changes = append(changes, rosterChange{playerID: p.ID, teamID: p.TeamID, active: false})
			res.Deactivated++
		}
	}

	if len(changes) > 0 {
		err = r.unit(ctx, PhaseRosters, "update rosters", func(tx store.Store) error {
			for _, c := range changes {
				if err := tx.UpdatePlayerRoster(ctx, c.playerID, c.teamID, c.active); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	}

	logger.Info().
		Int("teams", res.Teams).
		Int("moved", res.Moved).
		Int("deactivated", res.Deactivated).
		Int("not_found", res.NotFound).
		Int("fetch_errors", res.FetchErrors).
		Msg("Rosters refreshed")

	return res, nil
}
