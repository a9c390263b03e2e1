package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ttfl_tracker/ingestion/internal/cache"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 11, 6, 23, 0, 0, 0, time.UTC)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []reconcile.Options
	result  *reconcile.RunResult
	err     error
	delay   time.Duration
	running atomic.Int32
	overlap atomic.Bool
}

func (f *fakeRunner) Run(ctx context.Context, opts reconcile.Options) (*reconcile.RunResult, error) {
	if f.running.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.running.Add(-1)
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return f.result, f.err
}

func (f *fakeRunner) Calls() []reconcile.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reconcile.Options(nil), f.calls...)
}

type fakeCache struct {
	games    map[string][]*models.Game
	cold     bool
	reloads  []string
	mu       sync.Mutex
	reloadEr error
}

func (f *fakeCache) State() cache.State {
	if f.cold {
		return cache.StateEmpty
	}
	return cache.StateReady
}

func (f *fakeCache) ReloadOnRequest(ctx context.Context, trigger string) (cache.ReloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, trigger)
	return cache.ReloadResult{}, f.reloadEr
}

func (f *fakeCache) GamesForDate(date time.Time) []*models.Game {
	return f.games[date.Format(models.DateLayout)]
}

func (f *fakeCache) Reloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reloads...)
}

type fakeGames struct {
	games map[string][]*models.Game
	err   error
	calls int
}

func (f *fakeGames) ListGamesByDate(ctx context.Context, date time.Time) ([]*models.Game, error) {
	f.calls++
	return f.games[date.Format(models.DateLayout)], f.err
}

func changed(rows int) *reconcile.RunResult {
	return &reconcile.RunResult{Status: &reconcile.StatusResult{Updated: rows}}
}

func newTestScheduler(runner Runner, c Cache) *Scheduler {
	s := NewScheduler(Config{NightlyCron: "0 10 * * *", Location: time.UTC}, runner, c, &fakeGames{})
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestPollOnce_RunsStatusWhileGamesOpen(t *testing.T) {
	runner := &fakeRunner{result: changed(1)}
	c := &fakeCache{games: map[string][]*models.Game{
		"2025-11-06": {
			{ID: 1, Status: models.StatusFinal},
			{ID: 2, Status: models.StatusLive},
		},
	}}
	s := newTestScheduler(runner, c)

	require.NoError(t, s.pollOnce(context.Background()))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []reconcile.Phase{reconcile.PhaseStatus}, calls[0].Phases)
	assert.Equal(t, []string{"sync"}, c.Reloads())
}

func TestPollOnce_IdleWhenAllFinal(t *testing.T) {
	runner := &fakeRunner{}
	c := &fakeCache{games: map[string][]*models.Game{
		"2025-11-06": {{ID: 1, Status: models.StatusFinal}},
		"2025-11-07": {{ID: 2, Status: models.StatusScheduled}},
	}}
	s := newTestScheduler(runner, c)

	require.NoError(t, s.pollOnce(context.Background()))
	assert.Empty(t, runner.Calls())
}

func TestPollOnce_UsesLocalCalendarDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	runner := &fakeRunner{result: changed(0)}
	c := &fakeCache{games: map[string][]*models.Game{
		"2025-11-06": {{ID: 1, Status: models.StatusScheduled}},
	}}
	s := NewScheduler(Config{NightlyCron: "0 10 * * *", Location: ny}, runner, c, &fakeGames{})
	s.now = func() time.Time { return time.Date(2025, 11, 7, 3, 0, 0, 0, time.UTC) }

	require.NoError(t, s.pollOnce(context.Background()))
	assert.Len(t, runner.Calls(), 1)
}

func TestPollOnce_ReadsStorageUntilCacheLoaded(t *testing.T) {
	runner := &fakeRunner{result: changed(0)}
	games := &fakeGames{games: map[string][]*models.Game{
		"2025-11-06": {{ID: 1, Status: models.StatusLive}},
	}}
	s := NewScheduler(Config{NightlyCron: "0 10 * * *", Location: time.UTC}, runner, &fakeCache{cold: true}, games)
	s.now = func() time.Time { return fixedNow }

	require.NoError(t, s.pollOnce(context.Background()))
	assert.Equal(t, 1, games.calls)
	assert.Len(t, runner.Calls(), 1)

	games.err = errors.New("connection refused")
	assert.Error(t, s.pollOnce(context.Background()))
	assert.Len(t, runner.Calls(), 1)
}

func TestRunNow_NoReloadWithoutChanges(t *testing.T) {
	runner := &fakeRunner{result: changed(0)}
	c := &fakeCache{}
	s := newTestScheduler(runner, c)

	_, err := s.RunNow(context.Background(), reconcile.Options{})
	require.NoError(t, err)
	assert.Empty(t, c.Reloads())
}

func TestRunNow_DryRunNeverReloads(t *testing.T) {
	res := changed(3)
	res.DryRun = true
	runner := &fakeRunner{result: res}
	c := &fakeCache{}
	s := newTestScheduler(runner, c)

	_, err := s.RunNow(context.Background(), reconcile.Options{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, c.Reloads())
}

func TestRunNow_Serialized(t *testing.T) {
	runner := &fakeRunner{result: changed(0), delay: 20 * time.Millisecond}
	s := newTestScheduler(runner, &fakeCache{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.RunNow(context.Background(), reconcile.Options{})
		}()
	}
	wg.Wait()

	assert.Len(t, runner.Calls(), 4)
	assert.False(t, runner.overlap.Load(), "runs must not overlap")
}

func TestNightly_ReloadsOnce(t *testing.T) {
	t.Run("rows changed", func(t *testing.T) {
		c := &fakeCache{}
		s := newTestScheduler(&fakeRunner{result: changed(2)}, c)
		require.NoError(t, s.nightly(context.Background()))
		assert.Equal(t, []string{"sync"}, c.Reloads())
	})

	t.Run("nothing changed", func(t *testing.T) {
		c := &fakeCache{}
		s := newTestScheduler(&fakeRunner{result: changed(0)}, c)
		require.NoError(t, s.nightly(context.Background()))
		assert.Equal(t, []string{"nightly"}, c.Reloads())
	})

	t.Run("run failed", func(t *testing.T) {
		c := &fakeCache{}
		boom := errors.New("storage failure")
		s := newTestScheduler(&fakeRunner{err: boom}, c)
		assert.ErrorIs(t, s.nightly(context.Background()), boom)
		assert.Equal(t, []string{"nightly"}, c.Reloads())
	})
}

func TestStart_RejectsBadCron(t *testing.T) {
	s := NewScheduler(Config{NightlyCron: "not a cron"}, &fakeRunner{}, &fakeCache{}, &fakeGames{})
	assert.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(Config{NightlyCron: "0 10 * * *", PollInterval: time.Hour}, &fakeRunner{}, &fakeCache{}, &fakeGames{})
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
}
