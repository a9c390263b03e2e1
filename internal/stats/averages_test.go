package stats

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

// history builds rows for one player, newest first, one game per day back from start
func history(playerID int, start time.Time, scores ...int) []models.ScoreHistoryRow {
	rows := make([]models.ScoreHistoryRow, len(scores))
	for i, s := range scores {
		rows[i] = models.ScoreHistoryRow{PlayerID: playerID, Score: s, GameDate: start.AddDate(0, 0, -i)}
	}
	return rows
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 24.3, Round1(24.25))
	assert.Equal(t, 24.2, Round1(24.24))
	assert.Equal(t, -1.3, Round1(-1.25))
	assert.Equal(t, 0.0, Round1(0))
}

func TestCompute_EmptyHistory(t *testing.T) {
	result := Compute(nil, []int{1, 2, 3}, today)

	require.Len(t, result, 3)
	for _, id := range []int{1, 2, 3} {
		assert.Equal(t, models.Averages{}, result[id])
	}
}

func TestCompute_TwentyGamesWithinThirtyDays(t *testing.T) {
	scores := make([]int, 20)
	for i := range scores {
		scores[i] = i + 1 // newest game scored 1, oldest 20
	}
	rows := history(7, today, scores...)

	avg := Compute(rows, []int{7}, today)[7]

	assert.Equal(t, 8.0, avg.Last15)      // mean(1..15)
	assert.Equal(t, 5.5, avg.Last10)      // mean(1..10)
	assert.Equal(t, 10.5, avg.Last30Days) // mean(1..20)
}

func TestCompute_ThirtyDayWindow(t *testing.T) {
	rows := []models.ScoreHistoryRow{
		{PlayerID: 1, Score: 40, GameDate: today.AddDate(0, 0, -2)},
		{PlayerID: 1, Score: 20, GameDate: today.AddDate(0, 0, -30)},
		{PlayerID: 1, Score: 90, GameDate: today.AddDate(0, 0, -31)},
	}

	avg := Compute(rows, []int{1}, today)[1]

	assert.Equal(t, 30.0, avg.Last30Days, "the cutoff day itself is included")
	assert.Equal(t, 50.0, avg.Last15)
	assert.Equal(t, 50.0, avg.Last10)
}

func TestCompute_FewerThanTenGames(t *testing.T) {
	rows := history(3, today.AddDate(0, 0, -60), 10, 11, 12)

	avg := Compute(rows, []int{3}, today)[3]

	assert.Equal(t, 11.0, avg.Last15)
	assert.Equal(t, 11.0, avg.Last10)
	assert.Equal(t, 0.0, avg.Last30Days)
}

func TestCompute_Batch(t *testing.T) {
	var rows []models.ScoreHistoryRow
	rows = append(rows, history(1, today, 30, 31)...)
	rows = append(rows, history(2, today, 15)...)
	rows = append(rows, history(99, today, 100)...) // not requested

	result := Compute(rows, []int{1, 2, 4}, today)

	require.Len(t, result, 3)
	assert.Equal(t, 30.5, result[1].Last15)
	assert.Equal(t, 15.0, result[2].Last10)
	assert.Equal(t, models.Averages{}, result[4])
	_, ok := result[99]
	assert.False(t, ok)
}

func TestCompute_Rounding(t *testing.T) {
	rows := history(1, today, 24, 24, 25, 24) // mean 24.25

	avg := Compute(rows, []int{1}, today)[1]
	assert.Equal(t, 24.3, avg.Last15)
}

func TestCompute_NegativeScores(t *testing.T) {
	rows := history(1, today, -3, 1)

	avg := Compute(rows, []int{1}, today)[1]
	assert.Equal(t, -1.0, avg.Last15)
}

// fakeCache records calls and serves preset entries
type fakeCache struct {
	entries     map[int]models.Averages
	getErr      error
	gen         int64
	stored      map[int]models.Averages
	storedGen   int64
	setCalls    int
	invalidated int
}

func (f *fakeCache) GetAverages(ctx context.Context, date string, ids []int) (map[int]models.Averages, int64, error) {
	if f.getErr != nil {
		return nil, 0, f.getErr
	}
	out := map[int]models.Averages{}
	for _, id := range ids {
		if a, ok := f.entries[id]; ok {
			out[id] = a
		}
	}
	return out, f.gen, nil
}

func (f *fakeCache) SetAverages(ctx context.Context, gen int64, date string, avgs map[int]models.Averages, ttl time.Duration) error {
	f.setCalls++
	f.stored = avgs
	f.storedGen = gen
	return nil
}

func (f *fakeCache) InvalidateAverages(ctx context.Context) error {
	f.invalidated++
	f.gen++
	return nil
}

func seedScores(t *testing.T) *memstore.Store {
	t.Helper()
	ms := memstore.New()
	g1 := ms.AddGame(models.Game{ExternalID: "g1", GameDate: today.AddDate(0, 0, -1), Status: models.StatusFinal})
	g2 := ms.AddGame(models.Game{ExternalID: "g2", GameDate: today.AddDate(0, 0, -3), Status: models.StatusFinal})
	g3 := ms.AddGame(models.Game{ExternalID: "g3", GameDate: today.AddDate(0, 0, -5), Status: models.StatusFinal})

	played := func(m int32) sql.NullInt32 { return sql.NullInt32{Int32: m, Valid: true} }
	score := func(s int32) sql.NullInt32 { return sql.NullInt32{Int32: s, Valid: true} }

	ms.AddScore(models.ScoreRecord{PlayerID: 50, GameID: g1.ID, Score: score(40), Minutes: played(34)})
	ms.AddScore(models.ScoreRecord{PlayerID: 50, GameID: g2.ID, Score: score(20), Minutes: played(30)})
	// did not play / unknown minutes are excluded
	ms.AddScore(models.ScoreRecord{PlayerID: 50, GameID: g3.ID, Score: score(0), Minutes: played(0)})
	ms.AddScore(models.ScoreRecord{PlayerID: 51, GameID: g3.ID, Score: score(33)})
	return ms
}

func TestEngine_Averages(t *testing.T) {
	ms := seedScores(t)
	e := NewEngine(ms, time.UTC, WithClock(func() time.Time { return today.Add(15 * time.Hour) }))

	result, err := e.Averages(context.Background(), []int{50, 51})
	require.NoError(t, err)

	assert.Equal(t, models.Averages{Last15: 30, Last10: 30, Last30Days: 30}, result[50])
	assert.Equal(t, models.Averages{}, result[51])
}

func TestEngine_UsesCache(t *testing.T) {
	ms := seedScores(t)
	fc := &fakeCache{gen: 7, entries: map[int]models.Averages{51: {Last15: 1, Last10: 2, Last30Days: 3}}}
	e := NewEngine(ms, time.UTC, WithCache(fc, time.Minute), WithClock(func() time.Time { return today }))

	result, err := e.Averages(context.Background(), []int{50, 51})
	require.NoError(t, err)

	assert.Equal(t, 3.0, result[51].Last30Days, "cached entry served as is")
	assert.Equal(t, 30.0, result[50].Last15)
	assert.Contains(t, fc.stored, 50)
	assert.NotContains(t, fc.stored, 51)
	assert.Equal(t, int64(7), fc.storedGen, "stored under the generation that was read")

	e.Invalidate(context.Background())
	assert.Equal(t, 1, fc.invalidated)
}

func TestEngine_CacheFailureFallsBackToStorage(t *testing.T) {
	ms := seedScores(t)
	fc := &fakeCache{getErr: errors.New("redis down")}
	e := NewEngine(ms, time.UTC, WithCache(fc, time.Minute), WithClock(func() time.Time { return today }))

	result, err := e.Averages(context.Background(), []int{50})
	require.NoError(t, err)
	assert.Equal(t, 30.0, result[50].Last15)
	assert.Zero(t, fc.setCalls, "no generation known, nothing cached")
}

func TestEngine_StorageFailure(t *testing.T) {
	ms := seedScores(t)
	ms.FailOn("ScoreHistory", errors.New("connection reset"))
	e := NewEngine(ms, time.UTC)

	_, err := e.Averages(context.Background(), []int{50})
	assert.Error(t, err)
}

func TestEngine_TodayUsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC on Jan 1 is still Dec 31 in New York
	e := NewEngine(memstore.New(), ny, WithClock(func() time.Time {
		return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	}))
	assert.Equal(t, "2025-12-31", e.Today().Format(models.DateLayout))
}
