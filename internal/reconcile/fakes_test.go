package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store/memstore"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 11, 6, 15, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu sync.Mutex

	schedule    []models.ScheduleGameInput
	scheduleErr error

	boxScores map[string][]models.BoxScoreLineInput
	boxErrs   map[string][]error

	gameLogs   map[int][]models.GameLogInput
	gameLogErr map[int]error

	base    []models.TeamBaseStatsInput
	adv     []models.TeamAdvancedStatsInput
	opp     []models.TeamOpponentStatsInput
	statErr map[string]error

	rosters   map[int][]models.TeamRosterInput
	rosterErr map[int]error

	calls map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		boxScores:  map[string][]models.BoxScoreLineInput{},
		boxErrs:    map[string][]error{},
		gameLogs:   map[int][]models.GameLogInput{},
		gameLogErr: map[int]error{},
		statErr:    map[string]error{},
		rosters:    map[int][]models.TeamRosterInput{},
		rosterErr:  map[int]error{},
		calls:      map[string]int{},
	}
}

func (f *fakeProvider) count(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[call]++
}

func (f *fakeProvider) Calls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeProvider) FetchSchedule(ctx context.Context, season models.Season) ([]models.ScheduleGameInput, error) {
	f.count("schedule")
	return f.schedule, f.scheduleErr
}

func (f *fakeProvider) FetchBoxScore(ctx context.Context, gameID string) ([]models.BoxScoreLineInput, error) {
	f.count("box_score:" + gameID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.boxErrs[gameID]; len(errs) > 0 {
		f.boxErrs[gameID] = errs[1:]
		if errs[0] != nil {
			return nil, errs[0]
		}
	}
	return f.boxScores[gameID], nil
}

func (f *fakeProvider) FetchPlayerGameLog(ctx context.Context, playerID int, season models.Season, lastN int) ([]models.GameLogInput, error) {
	f.count(fmt.Sprintf("game_log:%d", playerID))
	if err := f.gameLogErr[playerID]; err != nil {
		return nil, err
	}
	logs := f.gameLogs[playerID]
	if lastN > 0 && len(logs) > lastN {
		logs = logs[:lastN]
	}
	return logs, nil
}

func (f *fakeProvider) FetchTeamBaseStats(ctx context.Context, season models.Season) ([]models.TeamBaseStatsInput, error) {
	f.count("team_stats_base")
	return f.base, f.statErr["base"]
}

func (f *fakeProvider) FetchTeamAdvancedStats(ctx context.Context, season models.Season) ([]models.TeamAdvancedStatsInput, error) {
	f.count("team_stats_advanced")
	return f.adv, f.statErr["advanced"]
}

func (f *fakeProvider) FetchTeamOpponentStats(ctx context.Context, season models.Season) ([]models.TeamOpponentStatsInput, error) {
	f.count("team_stats_opponent")
	return f.opp, f.statErr["opponent"]
}

func (f *fakeProvider) FetchRoster(ctx context.Context, teamExternalID int, season models.Season) ([]models.TeamRosterInput, error) {
	f.count(fmt.Sprintf("roster:%d", teamExternalID))
	if err := f.rosterErr[teamExternalID]; err != nil {
		return nil, err
	}
	return f.rosters[teamExternalID], nil
}

type fakeInjuries struct {
	reports []models.InjuryReport
	err     error
}

func (f *fakeInjuries) FetchInjuries(ctx context.Context) ([]models.InjuryReport, error) {
	return f.reports, f.err
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.n++ }

// instantTimer fires immediately and records every requested delay
type instantTimer struct {
	c      chan time.Time
	delays []time.Duration
}

func (t *instantTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

// league is the seeded reference data shared by the phase tests
type league struct {
	st  *memstore.Store
	lal models.Team
	bos models.Team

	lebron   models.Player
	luka     models.Player
	tatum    models.Player
	retired  models.Player
	provider *fakeProvider
	injuries *fakeInjuries
	timer    *instantTimer
	inv      *countingInvalidator
}

func newLeague(t *testing.T) *league {
	t.Helper()
	st := memstore.New()
	l := &league{st: st, provider: newFakeProvider(), injuries: &fakeInjuries{}, timer: &instantTimer{}, inv: &countingInvalidator{}}

	l.lal = st.AddTeam(models.Team{ExternalID: 1610612747, Abbreviation: "LAL", FullName: "Los Angeles Lakers"})
	l.bos = st.AddTeam(models.Team{ExternalID: 1610612738, Abbreviation: "BOS", FullName: "Boston Celtics"})

	l.lebron = st.AddPlayer(models.Player{ExternalID: 2544, Name: "LeBron James", TeamID: l.lal.ID, IsActive: true})
	l.luka = st.AddPlayer(models.Player{ExternalID: 1629029, Name: "Luka Dončić", TeamID: l.lal.ID, IsActive: true})
	l.tatum = st.AddPlayer(models.Player{ExternalID: 1628369, Name: "Jayson Tatum", TeamID: l.bos.ID, IsActive: true})
	l.retired = st.AddPlayer(models.Player{ExternalID: 977, Name: "Kobe Bryant", TeamID: l.lal.ID, IsActive: false})
	return l
}

func (l *league) addGame(ext, date, status string, home, away models.Team) models.Game {
	return l.st.AddGame(models.Game{
		ExternalID: ext,
		HomeTeamID: home.ID,
		AwayTeamID: away.ID,
		GameDate:   day(date),
		Status:     status,
	})
}

func (l *league) orchestrator() *Orchestrator {
	cfg := Config{
		SeasonStart: day("2025-10-21"),
		Retry:       retry.Policy{Attempts: 3, BaseDelay: time.Second, Timer: l.timer},
		Location:    time.UTC,
	}
	return New(l.st, l.provider, l.injuries, cfg,
		WithClock(func() time.Time { return fixedNow }),
		WithInvalidator(l.inv),
	)
}

func (l *league) run(t *testing.T, dryRun bool, phases ...Phase) *RunResult {
	t.Helper()
	res, err := l.orchestrator().Run(context.Background(), Options{Phases: phases, DryRun: dryRun})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}
