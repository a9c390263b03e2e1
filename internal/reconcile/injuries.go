package reconcile

import (
	"context"
	"strings"
	"time"
	"unicode"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeName folds a name for matching: accents are decomposed and
// dropped, the rest is lower-cased and trimmed.
func normalizeName(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

type injuryKey struct {
	name string
	team string
}

type injuryUpdate struct {
	playerID int
	injury   models.Injury
}

// refreshInjuries applies the injury feed to every stored player. A player
// is matched on (name, team) first and on name alone second. Unmatched
// players with an injury set are cleared.
func (r *run) refreshInjuries(ctx context.Context) (*InjuryResult, error) {
	logger := phaseLogger(ctx, PhaseInjuries)
	res := &InjuryResult{NotFound: []string{}}

	reports, err := retry.Fetch(ctx, r.policy("injuries"), r.injuries.FetchInjuries)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch injuries")
		res.Error = err.Error()
		return res, nil
	}
	if len(reports) == 0 {
		logger.Warn().Msg("Injury feed returned no data, leaving players untouched")
		res.NoData = true
		return res, nil
	}

	teams, err := r.st.ListTeams(ctx)
	if err != nil {
		return res, storageError(PhaseInjuries, "list teams", err)
	}
	players, err := r.st.ListPlayers(ctx)
	if err != nil {
		return res, storageError(PhaseInjuries, "list players", err)
	}

	teamNames := make(map[int]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = normalizeName(t.FullName)
	}

	byNameTeam := make(map[injuryKey]models.InjuryReport, len(reports))
	byName := make(map[string]models.InjuryReport, len(reports))
	for _, rep := range reports {
		name := normalizeName(rep.Name)
		byNameTeam[injuryKey{name: name, team: normalizeName(rep.Team)}] = rep
		byName[name] = rep
	}

	matched := make(map[injuryKey]bool, len(reports))
	var updates, clears []injuryUpdate

	for _, p := range players {
		key := injuryKey{name: normalizeName(p.Name), team: teamNames[p.TeamID]}

		rep, ok := byNameTeam[key]
		if ok {
			matched[key] = true
		} else if rep, ok = byName[key.name]; ok {
			matched[injuryKey{name: normalizeName(rep.Name), team: normalizeName(rep.Team)}] = true
		}

		switch {
		case ok:
			next := rep.ToInjury()
			if !p.Injury.Equal(next) {
				updates = append(updates, injuryUpdate{playerID: p.ID, injury: next})
			}
		case p.Injury.HasInjury():
			clears = append(clears, injuryUpdate{playerID: p.ID})
		}
	}

	for _, rep := range reports {
		if !matched[injuryKey{name: normalizeName(rep.Name), team: normalizeName(rep.Team)}] {
			res.NotFound = append(res.NotFound, rep.Name)
		}
	}

	err = r.unit(ctx, PhaseInjuries, "update injuries", func(tx store.Store) error {
		for _, u := range append(updates, clears...) {
			if err := tx.UpdatePlayerInjury(ctx, u.playerID, u.injury); err != nil {
				return err
			}
		}
		return tx.SetMetadata(ctx, models.MetadataInjuryUpdatedAt, r.now().UTC().Format(time.RFC3339))
	})
	if err != nil {
		return res, err
	}
	res.Updated = len(updates)
	res.Cleared = len(clears)

	logger.Info().
		Int("reports", len(reports)).
		Int("updated", res.Updated).
		Int("cleared", res.Cleared).
		Int("not_found", len(res.NotFound)).
		Msg("Injuries refreshed")

	return res, nil
}
