package stats

import (
	"context"
	"fmt"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store"

	"github.com/rs/zerolog/log"
)

// AveragesCache is an optional shared cache of computed averages
type AveragesCache interface {
	GetAverages(ctx context.Context, date string, playerIDs []int) (map[int]models.Averages, int64, error)
	SetAverages(ctx context.Context, gen int64, date string, averages map[int]models.Averages, ttl time.Duration) error
	InvalidateAverages(ctx context.Context) error
}

// Engine serves averages for batches of players from one history query
type Engine struct {
	scores store.ScoreReader
	cache  AveragesCache
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithCache enables the shared averages cache
func WithCache(cache AveragesCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = cache
		e.ttl = ttl
	}
}

// WithClock overrides the clock used to compute "today"
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine. loc decides which calendar day "today" is.
func NewEngine(scores store.ScoreReader, loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	e := &Engine{scores: scores, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current calendar date in the engine's location
func (e *Engine) Today() time.Time {
	return models.CivilDate(e.now(), e.loc)
}

// Averages returns the rolling averages for every requested player
func (e *Engine) Averages(ctx context.Context, playerIDs []int) (map[int]models.Averages, error) {
	result := make(map[int]models.Averages, len(playerIDs))
	if len(playerIDs) == 0 {
		return result, nil
	}

	today := e.Today()
	dateKey := today.Format(models.DateLayout)

	missing := playerIDs
	var (
		gen       int64
		cacheable bool
	)
	if e.cache != nil {
		cached, g, err := e.cache.GetAverages(ctx, dateKey, playerIDs)
		if err != nil {
			log.Warn().Err(err).Msg("Averages cache unavailable, computing from storage")
		} else {
			gen, cacheable = g, true
			missing = missing[:0:0]
			for _, id := range playerIDs {
				if avg, ok := cached[id]; ok {
					result[id] = avg
				} else {
					missing = append(missing, id)
				}
			}
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	history, err := e.scores.ScoreHistory(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to load score history: %w", err)
	}

	computed := Compute(history, missing, today)
	for id, avg := range computed {
		result[id] = avg
	}

	if cacheable {
		if err := e.cache.SetAverages(ctx, gen, dateKey, computed, e.ttl); err != nil {
			log.Warn().Err(err).Msg("Failed to store averages in cache")
		}
	}

	log.Debug().
		Int("players", len(playerIDs)).
		Int("computed", len(missing)).
		Int("history_rows", len(history)).
		Msg("Averages computed")

	return result, nil
}

// Invalidate drops cached averages after scores change
func (e *Engine) Invalidate(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateAverages(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate cached averages")
	}
}
