package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store"
	"ttfl_tracker/ingestion/internal/store/memstore"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func seedStore() *memstore.Store {
	ms := memstore.New()
	ms.AddTeam(models.Team{ID: 1, ExternalID: 1610612747, Abbreviation: "LAL", FullName: "Los Angeles Lakers"})
	ms.AddTeam(models.Team{ID: 2, ExternalID: 1610612738, Abbreviation: "BOS", FullName: "Boston Celtics"})
	ms.AddTeam(models.Team{ID: 3, ExternalID: 1610612744, Abbreviation: "GSW", FullName: "Golden State Warriors"})

	ms.AddPlayer(models.Player{ID: 10, ExternalID: 2544, Name: "LeBron James", TeamID: 1, IsActive: true})
	ms.AddPlayer(models.Player{ID: 11, ExternalID: 1629029, Name: "Luka Doncic", TeamID: 1, IsActive: true})
	ms.AddPlayer(models.Player{ID: 12, ExternalID: 1628369, Name: "Jayson Tatum", TeamID: 2, IsActive: true})
	ms.AddPlayer(models.Player{ID: 13, ExternalID: 203935, Name: "Marcus Smart", TeamID: 2, IsActive: false})
	ms.AddPlayer(models.Player{ID: 14, ExternalID: 201939, Name: "Stephen Curry", TeamID: 3, IsActive: true})

	ms.AddGame(models.Game{
		ID: 100, ExternalID: "0022500100", HomeTeamID: 1, AwayTeamID: 2, GameDate: day("2025-11-01"),
		Status:       models.StatusFinal,
		StartTimeUTC: sql.NullTime{Time: time.Date(2025, 11, 2, 2, 30, 0, 0, time.UTC), Valid: true},
	})
	ms.AddGame(models.Game{
		ID: 101, ExternalID: "0022500101", HomeTeamID: 3, AwayTeamID: 2, GameDate: day("2025-11-01"),
		Status:       models.StatusFinal,
		StartTimeUTC: sql.NullTime{Time: time.Date(2025, 11, 1, 23, 0, 0, 0, time.UTC), Valid: true},
	})
	ms.AddGame(models.Game{ID: 102, ExternalID: "0022500102", HomeTeamID: 2, AwayTeamID: 3, GameDate: day("2025-11-03"), Status: models.StatusScheduled})
	return ms
}

func TestReadCache_EmptyBeforeLoad(t *testing.T) {
	c := NewReadCache(memstore.New())

	assert.Equal(t, StateEmpty, c.State())
	assert.Empty(t, c.GamesForDate(day("2025-11-01")))
	assert.NotNil(t, c.GamesForDate(day("2025-11-01")))
	_, ok := c.Player(10)
	assert.False(t, ok)
	assert.Nil(t, c.PlayersForTeam(1, true))
}

func TestReadCache_Reload(t *testing.T) {
	c := NewReadCache(seedStore())

	result, err := c.Reload(context.Background())
	require.NoError(t, err)

	want := ReloadResult{Games: 3, Teams: 3, Players: 5, Dates: 2}
	if diff := cmp.Diff(want, result, cmpopts.IgnoreFields(ReloadResult{}, "LoadedAt")); diff != "" {
		t.Errorf("reload result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StateReady, c.State())
	assert.False(t, c.LoadedAt().IsZero())
}

func TestReadCache_Lookups(t *testing.T) {
	c := NewReadCache(seedStore())
	_, err := c.Reload(context.Background())
	require.NoError(t, err)

	team, ok := c.Team(2)
	require.True(t, ok)
	assert.Equal(t, "BOS", team.Abbreviation)

	p, ok := c.PlayerByExternalID(201939)
	require.True(t, ok)
	assert.Equal(t, "Stephen Curry", p.Name)

	byID, ok := c.Player(p.ID)
	require.True(t, ok)
	assert.Same(t, p, byID, "indexes must share one snapshot")

	_, ok = c.PlayerByExternalID(999)
	assert.False(t, ok)

	assert.Len(t, c.PlayersForTeam(2, false), 2)
	assert.Len(t, c.PlayersForTeam(2, true), 1)
	assert.Empty(t, c.PlayersForTeam(99, true))

	union := c.PlayersForTeams([]int{1, 2, 1}, true)
	names := make([]string, 0, len(union))
	for _, p := range union {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"LeBron James", "Luka Doncic", "Jayson Tatum"}, names)

	assert.Len(t, c.ActivePlayers(), 4)
	assert.Len(t, c.GamesForDate(day("2025-11-01")), 2)
	assert.Empty(t, c.GamesForDate(day("2025-12-25")))

	games := c.Games()
	require.Len(t, games, 3)
	assert.Equal(t, "2025-11-03", games[2].DateKey())
}

func TestReadCache_EarliestStartTimes(t *testing.T) {
	c := NewReadCache(seedStore())
	_, err := c.Reload(context.Background())
	require.NoError(t, err)

	times := c.EarliestStartTimes()
	assert.Equal(t, time.Date(2025, 11, 1, 23, 0, 0, 0, time.UTC), times["2025-11-01"])
	_, ok := times["2025-11-03"]
	assert.False(t, ok, "dates without start times are omitted")
}

func TestReadCache_FailedReloadKeepsSnapshot(t *testing.T) {
	ms := seedStore()
	c := NewReadCache(ms)
	_, err := c.Reload(context.Background())
	require.NoError(t, err)

	before, ok := c.PlayerByExternalID(2544)
	require.True(t, ok)

	ms.FailOn("ListGames", errors.New("connection refused"))
	ms.AddPlayer(models.Player{ID: 15, ExternalID: 1, Name: "New Guy", TeamID: 3, IsActive: true})

	_, err = c.Reload(context.Background())
	require.Error(t, err)

	var loadErr *LoadError
	assert.ErrorAs(t, err, &loadErr)
	assert.Equal(t, StateReady, c.State())

	after, ok := c.PlayerByExternalID(2544)
	require.True(t, ok)
	assert.Equal(t, before, after)
	_, ok = c.PlayerByExternalID(1)
	assert.False(t, ok, "partial reload must not leak")
}

// writeAfterTeams commits a change to the backing store as soon as the
// reload has read its teams
type writeAfterTeams struct {
	*memstore.Store
	write func()
}

func (w writeAfterTeams) WithinReadTx(ctx context.Context, fn func(tx store.Store) error) error {
	return w.Store.WithinReadTx(ctx, func(tx store.Store) error {
		return fn(teamsHook{Store: tx, after: w.write})
	})
}

type teamsHook struct {
	store.Store
	after func()
}

func (h teamsHook) ListTeams(ctx context.Context) ([]*models.Team, error) {
	teams, err := h.Store.ListTeams(ctx)
	h.after()
	return teams, err
}

func TestReadCache_ReloadReadsOneState(t *testing.T) {
	ms := seedStore()
	wrote := false
	src := writeAfterTeams{Store: ms, write: func() {
		if wrote {
			return
		}
		wrote = true
		ms.AddPlayer(models.Player{ID: 15, ExternalID: 1, Name: "New Guy", TeamID: 3, IsActive: true})
		ms.AddGame(models.Game{ID: 103, ExternalID: "0022500103", HomeTeamID: 1, AwayTeamID: 3, GameDate: day("2025-11-04")})
	}}
	c := NewReadCache(src)

	result, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Players)
	assert.Equal(t, 3, result.Games)
	_, ok := c.PlayerByExternalID(1)
	assert.False(t, ok, "write committed mid-reload belongs to the next snapshot")

	result, err = c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, result.Players)
	assert.Equal(t, 4, result.Games)
}

func TestReadCache_FailedFirstLoadStaysEmpty(t *testing.T) {
	ms := memstore.New()
	ms.FailOn("ListTeams", errors.New("boom"))
	c := NewReadCache(ms)

	c.LoadOnStartup(context.Background())

	assert.Equal(t, StateEmpty, c.State())
	_, err := c.ReloadOnRequest(context.Background(), "admin")
	assert.Error(t, err)
}

func TestReadCache_ConcurrentReadersDuringReload(t *testing.T) {
	c := NewReadCache(seedStore())
	_, err := c.Reload(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p, ok := c.PlayerByExternalID(2544)
				if !ok {
					t.Error("player vanished during reload")
					return
				}
				if team, ok := c.Team(p.TeamID); !ok || team.Abbreviation != "LAL" {
					t.Error("indexes out of sync during reload")
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		_, err := c.Reload(context.Background())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
