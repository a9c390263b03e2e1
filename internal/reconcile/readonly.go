package reconcile

import (
	"context"
	"time"

	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/store"
)

// readOnly serves reads from the wrapped store and drops every write.
// Dry runs execute the normal phase code against it.
type readOnly struct {
	store.Store
}

func (readOnly) UpdateTeamMetrics(context.Context, int, models.TeamMetrics, time.Time) error {
	return nil
}

func (readOnly) UpdatePlayerInjury(context.Context, int, models.Injury) error {
	return nil
}

func (readOnly) UpdatePlayerRoster(context.Context, int, int, bool) error {
	return nil
}

func (readOnly) UpdateGameResult(context.Context, int, models.GameResult) error {
	return nil
}

func (readOnly) InsertScore(context.Context, *models.ScoreRecord) error {
	return nil
}

func (readOnly) UpdateScoreMinutes(context.Context, int, int) error {
	return nil
}

func (readOnly) SetMetadata(context.Context, string, string) error {
	return nil
}

func (r readOnly) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(r)
}

func (r readOnly) WithinReadTx(ctx context.Context, fn func(tx store.Store) error) error {
	return r.Store.WithinReadTx(ctx, func(tx store.Store) error {
		return fn(readOnly{Store: tx})
	})
}

var _ store.Store = readOnly{}
