// Package memstore is an in-memory store.Store with copy-on-begin transactions.
// It backs unit tests of packages that consume the storage boundary.
package memstore

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store"
)

type state struct {
	teams    map[int]models.Team
	players  map[int]models.Player
	games    map[int]models.Game
	scores   map[int]models.ScoreRecord
	metadata map[string]string
	nextID   int
}

func newState() *state {
	return &state{
		teams:    map[int]models.Team{},
		players:  map[int]models.Player{},
		games:    map[int]models.Game{},
		scores:   map[int]models.ScoreRecord{},
		metadata: map[string]string{},
		nextID:   1,
	}
}

func (s *state) clone() *state {
	c := &state{
		teams:    make(map[int]models.Team, len(s.teams)),
		players:  make(map[int]models.Player, len(s.players)),
		games:    make(map[int]models.Game, len(s.games)),
		scores:   make(map[int]models.ScoreRecord, len(s.scores)),
		metadata: make(map[string]string, len(s.metadata)),
		nextID:   s.nextID,
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.scores {
		c.scores[k] = v
	}
	for k, v := range s.metadata {
		c.metadata[k] = v
	}
	return c
}

func (s *state) id() int {
	id := s.nextID
	s.nextID++
	return id
}

// Store is the root in-memory store
type Store struct {
	mu      sync.Mutex
	st      *state
	failOn  map[string]error
	commits int
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState(), failOn: map[string]error{}}
}

// FailOn makes every subsequent call of the named operation return err
func (m *Store) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[op] = err
}

// Commits returns the number of committed transactions
func (m *Store) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// AddTeam seeds a team, assigning an id when unset
func (m *Store) AddTeam(t models.Team) models.Team {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.st.id()
	}
	m.st.teams[t.ID] = t
	return t
}

// AddPlayer seeds a player, assigning an id when unset
func (m *Store) AddPlayer(p models.Player) models.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.st.id()
	}
	m.st.players[p.ID] = p
	return p
}

// AddGame seeds a game, assigning an id when unset
func (m *Store) AddGame(g models.Game) models.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == 0 {
		g.ID = m.st.id()
	}
	m.st.games[g.ID] = g
	return g
}

// AddScore seeds a score record, assigning an id when unset
func (m *Store) AddScore(s models.ScoreRecord) models.ScoreRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.st.id()
	}
	m.st.scores[s.ID] = s
	return s
}

// Team returns the stored team by id
func (m *Store) Team(id int) models.Team {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.teams[id]
}

// Player returns the stored player by id
func (m *Store) Player(id int) models.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.players[id]
}

// Game returns the stored game by id
func (m *Store) Game(id int) models.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.games[id]
}

// Scores returns all stored score records ordered by id
func (m *Store) Scores() []models.ScoreRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ScoreRecord, 0, len(m.st.scores))
	for _, s := range m.st.scores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Store) root() *view {
	return &view{m: m}
}

// view executes operations against either the live state (tx == nil) or a
// transaction's private copy.
type view struct {
	m  *Store
	tx *state
}

func (v *view) lock() (*state, func()) {
	v.m.mu.Lock()
	if v.tx != nil {
		return v.tx, v.m.mu.Unlock
	}
	return v.m.st, v.m.mu.Unlock
}

func (v *view) fail(op string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	return v.m.failOn[op]
}

func sortedTeams(st *state) []*models.Team {
	out := make([]*models.Team, 0, len(st.teams))
	for _, t := range st.teams {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedPlayers(st *state, keep func(models.Player) bool) []*models.Player {
	out := make([]*models.Player, 0, len(st.players))
	for _, p := range st.players {
		if keep != nil && !keep(p) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedGames(st *state, keep func(models.Game) bool) []*models.Game {
	out := make([]*models.Game, 0, len(st.games))
	for _, g := range st.games {
		if keep != nil && !keep(g) {
			continue
		}
		g := g
		out = append(out, &g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GameDate.Equal(out[j].GameDate) {
			return out[i].GameDate.Before(out[j].GameDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) ListTeams(ctx context.Context) ([]*models.Team, error) {
	if err := v.fail("ListTeams"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	return sortedTeams(st), nil
}

func (v *view) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	if err := v.fail("ListPlayers"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	return sortedPlayers(st, nil), nil
}

func (v *view) ListGames(ctx context.Context) ([]*models.Game, error) {
	if err := v.fail("ListGames"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	return sortedGames(st, nil), nil
}

func (v *view) ScoreHistory(ctx context.Context, playerIDs []int) ([]models.ScoreHistoryRow, error) {
	if err := v.fail("ScoreHistory"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()

	wanted := make(map[int]bool, len(playerIDs))
	for _, id := range playerIDs {
		wanted[id] = true
	}

	var rows []models.ScoreHistoryRow
	for _, s := range st.scores {
		if !wanted[s.PlayerID] || !s.Score.Valid || !s.Minutes.Valid || s.Minutes.Int32 <= 0 {
			continue
		}
		g, ok := st.games[s.GameID]
		if !ok {
			continue
		}
		rows = append(rows, models.ScoreHistoryRow{PlayerID: s.PlayerID, Score: int(s.Score.Int32), GameDate: g.GameDate})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PlayerID != rows[j].PlayerID {
			return rows[i].PlayerID < rows[j].PlayerID
		}
		return rows[i].GameDate.After(rows[j].GameDate)
	})
	return rows, nil
}

func (v *view) PlayerScores(ctx context.Context, playerID int) ([]models.PlayerGameScore, error) {
	if err := v.fail("PlayerScores"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()

	var rows []models.PlayerGameScore
	for _, s := range st.scores {
		if s.PlayerID != playerID {
			continue
		}
		g, ok := st.games[s.GameID]
		if !ok {
			continue
		}
		rows = append(rows, models.PlayerGameScore{
			GameID: g.ID, GameDate: g.GameDate, HomeTeamID: g.HomeTeamID, AwayTeamID: g.AwayTeamID,
			Score: s.Score, Minutes: s.Minutes,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].GameDate.After(rows[j].GameDate) })
	return rows, nil
}

func (v *view) GetTeamByExternalID(ctx context.Context, externalID int) (*models.Team, error) {
	if err := v.fail("GetTeamByExternalID"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	for _, t := range st.teams {
		if t.ExternalID == externalID {
			t := t
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *view) UpdateTeamMetrics(ctx context.Context, teamID int, metrics models.TeamMetrics, at time.Time) error {
	if err := v.fail("UpdateTeamMetrics"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	t, ok := st.teams[teamID]
	if !ok {
		return store.ErrNotFound
	}
	t.TeamMetrics = metrics
	t.StatsUpdatedAt = sql.NullTime{Time: at, Valid: true}
	st.teams[teamID] = t
	return nil
}

func (v *view) GetPlayerByExternalID(ctx context.Context, externalID int) (*models.Player, error) {
	if err := v.fail("GetPlayerByExternalID"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	for _, p := range st.players {
		if p.ExternalID == externalID {
			p := p
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *view) ListActivePlayersByTeams(ctx context.Context, teamIDs []int) ([]*models.Player, error) {
	if err := v.fail("ListActivePlayersByTeams"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	wanted := make(map[int]bool, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = true
	}
	return sortedPlayers(st, func(p models.Player) bool { return p.IsActive && wanted[p.TeamID] }), nil
}

func (v *view) UpdatePlayerInjury(ctx context.Context, playerID int, injury models.Injury) error {
	if err := v.fail("UpdatePlayerInjury"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	p, ok := st.players[playerID]
	if !ok {
		return store.ErrNotFound
	}
	p.Injury = injury
	st.players[playerID] = p
	return nil
}

func (v *view) UpdatePlayerRoster(ctx context.Context, playerID, teamID int, active bool) error {
	if err := v.fail("UpdatePlayerRoster"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	p, ok := st.players[playerID]
	if !ok {
		return store.ErrNotFound
	}
	p.TeamID = teamID
	p.IsActive = active
	st.players[playerID] = p
	return nil
}

func (v *view) ListNonFinalGames(ctx context.Context) ([]*models.Game, error) {
	if err := v.fail("ListNonFinalGames"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	return sortedGames(st, func(g models.Game) bool { return g.Status != models.StatusFinal }), nil
}

func (v *view) ListFinalGamesWithoutScores(ctx context.Context, since time.Time) ([]*models.Game, error) {
	if err := v.fail("ListFinalGamesWithoutScores"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	scored := map[int]bool{}
	for _, s := range st.scores {
		scored[s.GameID] = true
	}
	return sortedGames(st, func(g models.Game) bool {
		return g.Status == models.StatusFinal && !g.GameDate.Before(since) && !scored[g.ID]
	}), nil
}

func (v *view) ListGamesByDate(ctx context.Context, date time.Time) ([]*models.Game, error) {
	if err := v.fail("ListGamesByDate"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	key := date.Format(models.DateLayout)
	return sortedGames(st, func(g models.Game) bool { return g.DateKey() == key }), nil
}

func (v *view) UpdateGameResult(ctx context.Context, gameID int, result models.GameResult) error {
	if err := v.fail("UpdateGameResult"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	g, ok := st.games[gameID]
	if !ok {
		return store.ErrNotFound
	}
	g.Status = result.Status
	g.HomeScore = result.HomeScore
	g.AwayScore = result.AwayScore
	st.games[gameID] = g
	return nil
}

func (v *view) ScoreExists(ctx context.Context, playerID, gameID int) (bool, error) {
	if err := v.fail("ScoreExists"); err != nil {
		return false, err
	}
	st, unlock := v.lock()
	defer unlock()
	for _, s := range st.scores {
		if s.PlayerID == playerID && s.GameID == gameID {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) InsertScore(ctx context.Context, score *models.ScoreRecord) error {
	if err := v.fail("InsertScore"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	score.ID = st.id()
	score.CreatedAt = time.Now()
	st.scores[score.ID] = *score
	return nil
}

func (v *view) ListScoresMissingMinutes(ctx context.Context) ([]models.MissingMinutesRow, error) {
	if err := v.fail("ListScoresMissingMinutes"); err != nil {
		return nil, err
	}
	st, unlock := v.lock()
	defer unlock()
	var rows []models.MissingMinutesRow
	for _, s := range st.scores {
		if s.Minutes.Valid {
			continue
		}
		g, ok := st.games[s.GameID]
		if !ok {
			continue
		}
		rows = append(rows, models.MissingMinutesRow{ScoreID: s.ID, PlayerID: s.PlayerID, GameDate: g.GameDate})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PlayerID != rows[j].PlayerID {
			return rows[i].PlayerID < rows[j].PlayerID
		}
		return rows[i].ScoreID < rows[j].ScoreID
	})
	return rows, nil
}

func (v *view) UpdateScoreMinutes(ctx context.Context, scoreID, minutes int) error {
	if err := v.fail("UpdateScoreMinutes"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	s, ok := st.scores[scoreID]
	if !ok {
		return store.ErrNotFound
	}
	s.Minutes = sql.NullInt32{Int32: int32(minutes), Valid: true}
	st.scores[scoreID] = s
	return nil
}

func (v *view) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	if err := v.fail("GetMetadata"); err != nil {
		return "", false, err
	}
	st, unlock := v.lock()
	defer unlock()
	val, ok := st.metadata[key]
	return val, ok, nil
}

func (v *view) SetMetadata(ctx context.Context, key, value string) error {
	if err := v.fail("SetMetadata"); err != nil {
		return err
	}
	st, unlock := v.lock()
	defer unlock()
	st.metadata[key] = value
	return nil
}

func (v *view) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if v.tx != nil {
		return fn(v)
	}
	if err := v.fail("WithinTx"); err != nil {
		return err
	}

	v.m.mu.Lock()
	tx := &view{m: v.m, tx: v.m.st.clone()}
	v.m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	v.m.mu.Lock()
	v.m.st = tx.tx
	v.m.commits++
	v.m.mu.Unlock()
	return nil
}

// WithinReadTx runs fn on a copy of the current state that is never committed
func (v *view) WithinReadTx(ctx context.Context, fn func(tx store.Store) error) error {
	if v.tx != nil {
		return fn(v)
	}
	if err := v.fail("WithinReadTx"); err != nil {
		return err
	}

	v.m.mu.Lock()
	tx := &view{m: v.m, tx: v.m.st.clone()}
	v.m.mu.Unlock()

	return fn(tx)
}
