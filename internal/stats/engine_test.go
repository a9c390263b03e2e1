package stats

import (
	"context"
	"testing"
	"time"

	"ttfl_tracker/ingestion/internal/cache"
	"ttfl_tracker/ingestion/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// changingScores serves one player's history and runs onRead after each read,
// standing in for a backfill that commits while averages are being computed
type changingScores struct {
	score  int
	reads  int
	onRead func(reads int)
}

func (c *changingScores) ScoreHistory(ctx context.Context, playerIDs []int) ([]models.ScoreHistoryRow, error) {
	rows := []models.ScoreHistoryRow{{PlayerID: 50, Score: c.score, GameDate: today.AddDate(0, 0, -1)}}
	c.reads++
	if c.onRead != nil {
		c.onRead(c.reads)
	}
	return rows, nil
}

func (c *changingScores) PlayerScores(ctx context.Context, playerID int) ([]models.PlayerGameScore, error) {
	return nil, nil
}

func TestEngine_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(cache.Config{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	defer rc.Close()

	scores := &changingScores{score: 10}
	e := NewEngine(scores, time.UTC, WithCache(rc, time.Hour), WithClock(func() time.Time { return today }))
	ctx := context.Background()

	first, err := e.Averages(ctx, []int{50})
	require.NoError(t, err)
	assert.Equal(t, 10.0, first[50].Last15)

	scores.score = 20
	cached, err := e.Averages(ctx, []int{50})
	require.NoError(t, err)
	assert.Equal(t, 10.0, cached[50].Last15, "served from redis")
	assert.Equal(t, 1, scores.reads)

	e.Invalidate(ctx)
	fresh, err := e.Averages(ctx, []int{50})
	require.NoError(t, err)
	assert.Equal(t, 20.0, fresh[50].Last15)
	assert.Equal(t, 2, scores.reads)
}

func TestEngine_InvalidationDuringComputeIsNotLost(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(cache.Config{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	defer rc.Close()

	e := NewEngine(nil, time.UTC, WithCache(rc, time.Hour), WithClock(func() time.Time { return today }))
	scores := &changingScores{score: 10}
	scores.onRead = func(reads int) {
		if reads == 1 {
			scores.score = 50
			e.Invalidate(context.Background())
		}
	}
	e.scores = scores
	ctx := context.Background()

	first, err := e.Averages(ctx, []int{50})
	require.NoError(t, err)
	assert.Equal(t, 10.0, first[50].Last15, "computed from the rows read before the change")

	second, err := e.Averages(ctx, []int{50})
	require.NoError(t, err)
	assert.Equal(t, 50.0, second[50].Last15)
	assert.Equal(t, 2, scores.reads)
}
