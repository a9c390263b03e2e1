package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"ttfl_tracker/ingestion/internal/cache"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/reconcile"
	"ttfl_tracker/ingestion/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const unknownTeam = "UNK"

// GameView is one game of /api/games
type GameView struct {
	GameID    string `json:"game_id"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	GameDate  string `json:"game_date"`
	Status    string `json:"status"`
	HomeScore *int32 `json:"home_score"`
	AwayScore *int32 `json:"away_score"`
}

// TonightPlayer is one player of /api/players/tonight
type TonightPlayer struct {
	PlayerID     int      `json:"player_id"`
	Name         string   `json:"name"`
	Team         string   `json:"team"`
	Opponent     string   `json:"opponent"`
	IsHome       bool     `json:"is_home"`
	OppPace      *float64 `json:"opp_pace"`
	OppDefRating *float64 `json:"opp_def_rating"`
	models.Averages
	models.InjuryView
}

// PlayerGame is one row of a player's season log
type PlayerGame struct {
	GameDate  string `json:"game_date"`
	Opponent  string `json:"opponent"`
	IsHome    bool   `json:"is_home"`
	TTFLScore int32  `json:"ttfl_score"`
	Minutes   int32  `json:"minutes"`
}

// PlayerStats is the body of /api/players/{externalID}/stats
type PlayerStats struct {
	Player struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Team string `json:"team"`
	} `json:"player"`
	RecentGames []PlayerGame `json:"recent_games"`
	models.Averages
}

func nullable32(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	return &v.Int32
}

func floatPtr(valid bool, f float64) *float64 {
	if !valid {
		return nil
	}
	return &f
}

// queryDate reads ?date=YYYY-MM-DD, defaulting to today
func (s *Server) queryDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.averages.Today(), nil
	}
	return time.Parse(models.DateLayout, raw)
}

func (s *Server) abbreviation(teamID int) string {
	if t, ok := s.cache.Team(teamID); ok {
		return t.Abbreviation
	}
	return unknownTeam
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	date, err := s.queryDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	games := s.cache.GamesForDate(date)
	out := make([]GameView, 0, len(games))
	for _, g := range games {
		out = append(out, GameView{
			GameID:    g.ExternalID,
			HomeTeam:  s.abbreviation(g.HomeTeamID),
			AwayTeam:  s.abbreviation(g.AwayTeamID),
			GameDate:  g.DateKey(),
			Status:    g.Status,
			HomeScore: nullable32(g.HomeScore),
			AwayScore: nullable32(g.AwayScore),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTonight(w http.ResponseWriter, r *http.Request) {
	date, err := s.queryDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	games := s.cache.GamesForDate(date)
	out := []TonightPlayer{}
	if len(games) == 0 {
		writeJSON(w, http.StatusOK, out)
		return
	}

	teamIDs := make([]int, 0, 2*len(games))
	for _, g := range games {
		teamIDs = append(teamIDs, g.HomeTeamID, g.AwayTeamID)
	}
	players := s.cache.PlayersForTeams(teamIDs, true)

	ids := make([]int, len(players))
	byTeam := make(map[int][]*models.Player)
	for i, p := range players {
		ids[i] = p.ID
		byTeam[p.TeamID] = append(byTeam[p.TeamID], p)
	}
	averages, err := s.averages.Averages(r.Context(), ids)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute averages")
		writeError(w, http.StatusInternalServerError, "failed to compute averages")
		return
	}

	for _, g := range games {
		home, okHome := s.cache.Team(g.HomeTeamID)
		away, okAway := s.cache.Team(g.AwayTeamID)
		if !okHome || !okAway {
			continue
		}
		for _, side := range []struct {
			team, opp *models.Team
			isHome    bool
		}{{home, away, true}, {away, home, false}} {
			for _, p := range byTeam[side.team.ID] {
				out = append(out, TonightPlayer{
					PlayerID:     p.ExternalID,
					Name:         p.Name,
					Team:         side.team.Abbreviation,
					Opponent:     side.opp.Abbreviation,
					IsHome:       side.isHome,
					OppPace:      floatPtr(side.opp.Pace.Valid, side.opp.Pace.Float64),
					OppDefRating: floatPtr(side.opp.DefRating.Valid, side.opp.DefRating.Float64),
					Averages:     averages[p.ID],
					InjuryView:   p.Injury.View(),
				})
			}
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// player resolves a provider id from the cache, or from storage until the
// cache has been loaded
func (s *Server) player(ctx context.Context, externalID int) (*models.Player, error) {
	if p, ok := s.cache.PlayerByExternalID(externalID); ok {
		return p, nil
	}
	if s.cache.State() == cache.StateReady {
		return nil, store.ErrNotFound
	}
	return s.storage.GetPlayerByExternalID(ctx, externalID)
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	externalID, err := strconv.Atoi(chi.URLParam(r, "externalID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "player id must be an integer")
		return
	}

	p, err := s.player(r.Context(), externalID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int("player", externalID).Msg("Failed to look up player")
		writeError(w, http.StatusInternalServerError, "failed to look up player")
		return
	}

	rows, err := s.storage.PlayerScores(r.Context(), p.ID)
	if err != nil {
		log.Error().Err(err).Int("player", externalID).Msg("Failed to load player scores")
		writeError(w, http.StatusInternalServerError, "failed to load player scores")
		return
	}
	averages, err := s.averages.Averages(r.Context(), []int{p.ID})
	if err != nil {
		log.Error().Err(err).Int("player", externalID).Msg("Failed to compute averages")
		writeError(w, http.StatusInternalServerError, "failed to compute averages")
		return
	}

	var body PlayerStats
	body.Player.ID = externalID
	body.Player.Name = p.Name
	if t, ok := s.cache.Team(p.TeamID); ok {
		body.Player.Team = t.Abbreviation
	}
	body.Averages = averages[p.ID]
	body.RecentGames = make([]PlayerGame, 0, len(rows))
	for _, row := range rows {
		game := models.Game{HomeTeamID: row.HomeTeamID, AwayTeamID: row.AwayTeamID}
		opp, isHome := game.OpponentOf(p.TeamID)
		body.RecentGames = append(body.RecentGames, PlayerGame{
			GameDate:  row.GameDate.Format(models.DateLayout),
			Opponent:  s.abbreviation(opp),
			IsHome:    isHome,
			TTFLScore: row.Score.Int32,
			Minutes:   row.Minutes.Int32,
		})
	}

	writeJSON(w, http.StatusOK, body)
}

// SnapshotPlayer is one player of /api/snapshot
type SnapshotPlayer struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	TeamID   int    `json:"team_id"`
	models.Averages
	models.InjuryView
}

// SnapshotGame is one game of /api/snapshot
type SnapshotGame struct {
	GameDate   string `json:"game_date"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	HomeTeamID int    `json:"home_team_id"`
	AwayTeamID int    `json:"away_team_id"`
}

// SnapshotTeam is one team of /api/snapshot
type SnapshotTeam struct {
	TeamID       int     `json:"team_id"`
	Abbreviation string  `json:"abbreviation"`
	FullName     string  `json:"full_name"`
	Pace         float64 `json:"pace"`
	DefRating    float64 `json:"def_rating"`
}

// SnapshotMetadata describes a snapshot
type SnapshotMetadata struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	TotalPlayers      int               `json:"total_players"`
	TotalGames        int               `json:"total_games"`
	TotalTeams        int               `json:"total_teams"`
	InjuryUpdatedAt   *string           `json:"injury_updated_at"`
	EarliestGameTimes map[string]string `json:"earliest_game_times"`
}

// Snapshot is the whole season in one response
type Snapshot struct {
	Metadata SnapshotMetadata `json:"metadata"`
	Players  []SnapshotPlayer `json:"players"`
	Games    []SnapshotGame   `json:"games"`
	Teams    []SnapshotTeam   `json:"teams"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	players := s.cache.ActivePlayers()
	ids := make([]int, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	averages, err := s.averages.Averages(ctx, ids)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute averages")
		writeError(w, http.StatusInternalServerError, "failed to compute averages")
		return
	}

	var injuryUpdatedAt *string
	stamp, ok, err := s.storage.GetMetadata(ctx, models.MetadataInjuryUpdatedAt)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read injury timestamp")
	} else if ok {
		injuryUpdatedAt = &stamp
	}

	snap := Snapshot{
		Players: make([]SnapshotPlayer, 0, len(players)),
		Games:   []SnapshotGame{},
		Teams:   []SnapshotTeam{},
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	for _, p := range players {
		snap.Players = append(snap.Players, SnapshotPlayer{
			PlayerID:   p.ExternalID,
			Name:       p.Name,
			Team:       s.abbreviation(p.TeamID),
			TeamID:     p.TeamID,
			Averages:   averages[p.ID],
			InjuryView: p.Injury.View(),
		})
	}
	for _, g := range s.cache.Games() {
		snap.Games = append(snap.Games, SnapshotGame{
			GameDate:   g.DateKey(),
			HomeTeam:   s.abbreviation(g.HomeTeamID),
			AwayTeam:   s.abbreviation(g.AwayTeamID),
			HomeTeamID: g.HomeTeamID,
			AwayTeamID: g.AwayTeamID,
		})
	}
	for _, t := range s.cache.Teams() {
		snap.Teams = append(snap.Teams, SnapshotTeam{
			TeamID:       t.ID,
			Abbreviation: t.Abbreviation,
			FullName:     t.FullName,
			Pace:         t.PaceOrZero(),
			DefRating:    t.DefRatingOrZero(),
		})
	}

	earliest := s.cache.EarliestStartTimes()
	snap.Metadata = SnapshotMetadata{
		GeneratedAt:       s.now().UTC(),
		TotalPlayers:      len(snap.Players),
		TotalGames:        len(snap.Games),
		TotalTeams:        len(snap.Teams),
		InjuryUpdatedAt:   injuryUpdatedAt,
		EarliestGameTimes: make(map[string]string, len(earliest)),
	}
	for date, at := range earliest {
		snap.Metadata.EarliestGameTimes[date] = at.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCacheReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.cache.ReloadOnRequest(r.Context(), "admin")
	if err != nil {
		log.Error().Err(err).Msg("Admin cache reload failed")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	phases, err := reconcile.ParsePhases(q.Get("phases"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dryRun := false
	if raw := q.Get("dry_run"); raw != "" {
		if dryRun, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "dry_run must be a boolean")
			return
		}
	}

	result, err := s.sync.RunNow(r.Context(), reconcile.Options{Phases: phases, DryRun: dryRun})
	var storageErr *reconcile.StorageError
	switch {
	case errors.As(err, &storageErr) && result != nil:
		writeJSON(w, http.StatusInternalServerError, result)
	case err != nil && result != nil:
		writeJSON(w, http.StatusServiceUnavailable, result)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, result)
	}
}
