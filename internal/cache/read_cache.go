package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store"

	"github.com/rs/zerolog/log"
)

// State is the lifecycle state of the read cache
type State int32

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

// Source is the storage a reload reads from. Teams, players and games are
// read inside one WithinReadTx so the snapshot reflects a single state.
type Source interface {
	WithinReadTx(ctx context.Context, fn func(tx store.Store) error) error
}

// LoadError reports a failed reload. The previous snapshot, if any, stays in place.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load read cache: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ReloadResult counts what a successful reload loaded
type ReloadResult struct {
	Games    int       `json:"games"`
	Teams    int       `json:"teams"`
	Players  int       `json:"players"`
	Dates    int       `json:"dates"`
	LoadedAt time.Time `json:"loaded_at"`
}

// snapshot is immutable once published
type snapshot struct {
	loadedAt time.Time

	teams     []*models.Team
	teamsByID map[int]*models.Team

	players             []*models.Player
	playersByID         map[int]*models.Player
	playersByExternalID map[int]*models.Player
	playersByTeam       map[int][]*models.Player

	games         []*models.Game
	gamesByDate   map[string][]*models.Game
	earliestStart map[string]time.Time
}

func buildSnapshot(teams []*models.Team, players []*models.Player, games []*models.Game, at time.Time) *snapshot {
	s := &snapshot{
		loadedAt:            at,
		teams:               teams,
		teamsByID:           make(map[int]*models.Team, len(teams)),
		players:             players,
		playersByID:         make(map[int]*models.Player, len(players)),
		playersByExternalID: make(map[int]*models.Player, len(players)),
		playersByTeam:       make(map[int][]*models.Player),
		gamesByDate:         make(map[string][]*models.Game),
		earliestStart:       make(map[string]time.Time),
	}

	for _, t := range teams {
		s.teamsByID[t.ID] = t
	}

	for _, p := range players {
		s.playersByID[p.ID] = p
		s.playersByExternalID[p.ExternalID] = p
		s.playersByTeam[p.TeamID] = append(s.playersByTeam[p.TeamID], p)
	}

	sorted := make([]*models.Game, len(games))
	copy(sorted, games)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].GameDate.Before(sorted[j].GameDate) })
	s.games = sorted

	for _, g := range sorted {
		key := g.DateKey()
		s.gamesByDate[key] = append(s.gamesByDate[key], g)
		if g.StartTimeUTC.Valid {
			if cur, ok := s.earliestStart[key]; !ok || g.StartTimeUTC.Time.Before(cur) {
				s.earliestStart[key] = g.StartTimeUTC.Time
			}
		}
	}

	return s
}

// ReadCache is a process-scoped snapshot of teams, players and the schedule.
// Readers never block: they see either the previous or the new snapshot in
// full. Entities returned by lookups are shared and must not be modified.
type ReadCache struct {
	source Source
	now    func() time.Time

	current  atomic.Pointer[snapshot]
	state    atomic.Int32
	reloadMu sync.Mutex
}

// NewReadCache creates an empty cache reading from source
func NewReadCache(source Source) *ReadCache {
	return &ReadCache{source: source, now: time.Now}
}

// State returns the current lifecycle state
func (c *ReadCache) State() State {
	return State(c.state.Load())
}

// LoadedAt returns when the current snapshot was built, or the zero time
func (c *ReadCache) LoadedAt() time.Time {
	if s := c.current.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}

// Reload rebuilds the snapshot from one bulk read and swaps it in atomically.
// On failure the previous snapshot is kept and a *LoadError is returned.
func (c *ReadCache) Reload(ctx context.Context) (ReloadResult, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	c.state.Store(int32(StateLoading))
	start := time.Now()

	s, err := c.load(ctx)
	if err != nil {
		if c.current.Load() != nil {
			c.state.Store(int32(StateReady))
		} else {
			c.state.Store(int32(StateEmpty))
		}
		return ReloadResult{}, &LoadError{Err: err}
	}

	c.current.Store(s)
	c.state.Store(int32(StateReady))

	result := ReloadResult{
		Games:    len(s.games),
		Teams:    len(s.teams),
		Players:  len(s.players),
		Dates:    len(s.gamesByDate),
		LoadedAt: s.loadedAt,
	}

	log.Info().
		Int("games", result.Games).
		Int("teams", result.Teams).
		Int("players", result.Players).
		Int("dates", result.Dates).
		Dur("duration", time.Since(start)).
		Msg("Read cache loaded")

	return result, nil
}

func (c *ReadCache) load(ctx context.Context) (*snapshot, error) {
	var (
		teams   []*models.Team
		players []*models.Player
		games   []*models.Game
	)
	err := c.source.WithinReadTx(ctx, func(tx store.Store) error {
		var err error
		if teams, err = tx.ListTeams(ctx); err != nil {
			return fmt.Errorf("failed to list teams: %w", err)
		}
		if players, err = tx.ListPlayers(ctx); err != nil {
			return fmt.Errorf("failed to list players: %w", err)
		}
		if games, err = tx.ListGames(ctx); err != nil {
			return fmt.Errorf("failed to list games: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildSnapshot(teams, players, games, c.now()), nil
}

// LoadOnStartup performs the best-effort initial load. Failure is logged
// and swallowed so the process keeps serving.
func (c *ReadCache) LoadOnStartup(ctx context.Context) {
	result, err := c.Reload(ctx)
	metrics.RecordReadCacheReload("startup", err, result.Games, result.Teams, result.Players)
	if err != nil {
		log.Error().Err(err).Msg("Initial read cache load failed, continuing with empty cache")
	}
}

// ReloadOnRequest reloads on behalf of an operator and reports the outcome
func (c *ReadCache) ReloadOnRequest(ctx context.Context, trigger string) (ReloadResult, error) {
	result, err := c.Reload(ctx)
	metrics.RecordReadCacheReload(trigger, err, result.Games, result.Teams, result.Players)
	return result, err
}

// Team looks up a team by internal id
func (c *ReadCache) Team(id int) (*models.Team, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	t, ok := s.teamsByID[id]
	return t, ok
}

// Player looks up a player by internal id
func (c *ReadCache) Player(id int) (*models.Player, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	p, ok := s.playersByID[id]
	return p, ok
}

// PlayerByExternalID looks up a player by the provider's player id
func (c *ReadCache) PlayerByExternalID(externalID int) (*models.Player, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	p, ok := s.playersByExternalID[externalID]
	return p, ok
}

// PlayersForTeam returns the team's players, optionally only active ones
func (c *ReadCache) PlayersForTeam(teamID int, activeOnly bool) []*models.Player {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	return filterActive(s.playersByTeam[teamID], activeOnly)
}

// PlayersForTeams returns the union of several teams' players in no particular order
func (c *ReadCache) PlayersForTeams(teamIDs []int, activeOnly bool) []*models.Player {
	s := c.current.Load()
	if s == nil {
		return nil
	}

	seen := make(map[int]bool, len(teamIDs))
	var out []*models.Player
	for _, id := range teamIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, filterActive(s.playersByTeam[id], activeOnly)...)
	}
	return out
}

func filterActive(players []*models.Player, activeOnly bool) []*models.Player {
	if !activeOnly {
		out := make([]*models.Player, len(players))
		copy(out, players)
		return out
	}
	out := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// ActivePlayers returns every active player
func (c *ReadCache) ActivePlayers() []*models.Player {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	return filterActive(s.players, true)
}

// GamesForDate returns the games scheduled on date, or an empty slice
func (c *ReadCache) GamesForDate(date time.Time) []*models.Game {
	s := c.current.Load()
	if s == nil {
		return []*models.Game{}
	}
	games := s.gamesByDate[date.Format(models.DateLayout)]
	out := make([]*models.Game, len(games))
	copy(out, games)
	return out
}

// Games returns the full schedule ordered by date
func (c *ReadCache) Games() []*models.Game {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	out := make([]*models.Game, len(s.games))
	copy(out, s.games)
	return out
}

// Teams returns every team
func (c *ReadCache) Teams() []*models.Team {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	out := make([]*models.Team, len(s.teams))
	copy(out, s.teams)
	return out
}

// EarliestStartTimes maps each date key to the first tip-off of that date
func (c *ReadCache) EarliestStartTimes() map[string]time.Time {
	s := c.current.Load()
	if s == nil {
		return map[string]time.Time{}
	}
	out := make(map[string]time.Time, len(s.earliestStart))
	for k, v := range s.earliestStart {
		out[k] = v
	}
	return out
}
