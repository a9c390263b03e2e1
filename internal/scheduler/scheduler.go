package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ttfl_tracker/ingestion/internal/cache"
	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/reconcile"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner executes one sync run
type Runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.RunResult, error)
}

// Cache is the part of the read cache the scheduler drives
type Cache interface {
	State() cache.State
	ReloadOnRequest(ctx context.Context, trigger string) (cache.ReloadResult, error)
	GamesForDate(date time.Time) []*models.Game
}

// GameSource reads games from storage while the read cache is not loaded
type GameSource interface {
	ListGamesByDate(ctx context.Context, date time.Time) ([]*models.Game, error)
}

// Config holds the scheduler timings
type Config struct {
	NightlyCron  string
	PollInterval time.Duration
	Location     *time.Location
}

// Scheduler triggers sync runs and serializes them with operator triggers:
// - nightly full run followed by a cache reload
// - status polling while today's schedule has unfinished games
type Scheduler struct {
	cfg      Config
	runner   Runner
	cache    Cache
	games    GameSource
	cron     *cron.Cron
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time

	runMu sync.Mutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg Config, runner Runner, c Cache, games GameSource) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		cache:    c,
		games:    games,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.NightlyCron, func() {
		if err := s.nightly(ctx); err != nil {
			log.Error().Err(err).Msg("Nightly sync failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule nightly sync: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.NightlyCron).
		Str("timezone", s.cfg.Location.String()).
		Msg("Nightly sync scheduled")

	if s.cfg.PollInterval > 0 {
		s.ticker = time.NewTicker(s.cfg.PollInterval)
		log.Info().
			Dur("interval", s.cfg.PollInterval).
			Msg("Live game polling started")
		go s.pollActiveGames(ctx)
	}

	return nil
}

// Stop stops the scheduler and waits for a running cron job to return
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping scheduler...")

		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		if s.ticker != nil {
			s.ticker.Stop()
		}

		close(s.stopChan)
		log.Info().Msg("Scheduler stopped")
	})
}

func (s *Scheduler) pollActiveGames(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping live game polling")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping live game polling")
			return
		case <-s.ticker.C:
			if err := s.pollOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Live game status sync failed")
			}
		}
	}
}

// pollOnce runs the status phase when today's schedule still has games that
// are not final. The schedule comes from storage until the cache is loaded.
func (s *Scheduler) pollOnce(ctx context.Context) error {
	today := models.CivilDate(s.now(), s.cfg.Location)

	games, err := s.gamesOn(ctx, today)
	if err != nil {
		return err
	}

	open := 0
	for _, g := range games {
		if !g.IsFinal() {
			open++
		}
	}
	metrics.ActiveGames.Set(float64(open))

	if open == 0 {
		log.Debug().Str("date", today.Format(models.DateLayout)).Msg("No unfinished games today")
		return nil
	}

	log.Debug().Int("open_games", open).Msg("Polling game statuses")
	metrics.RecordSchedulerRun("status_poll")
	_, err = s.RunNow(ctx, reconcile.Options{Phases: []reconcile.Phase{reconcile.PhaseStatus}})
	return err
}

func (s *Scheduler) gamesOn(ctx context.Context, date time.Time) ([]*models.Game, error) {
	if s.cache.State() == cache.StateReady {
		return s.cache.GamesForDate(date), nil
	}
	games, err := s.games.ListGamesByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's games: %w", err)
	}
	return games, nil
}

// nightly runs the default phases and reloads the cache whatever the outcome
func (s *Scheduler) nightly(ctx context.Context) error {
	log.Info().Msg("Running nightly sync...")
	metrics.RecordSchedulerRun("nightly")

	result, err := s.RunNow(ctx, reconcile.Options{Phases: reconcile.DefaultPhases})
	if result == nil || result.RowsChanged() == 0 {
		s.reload(ctx, "nightly")
	}
	return err
}

// RunNow executes a run once no other run is in progress. The read cache is
// reloaded when the run changed any rows.
func (s *Scheduler) RunNow(ctx context.Context, opts reconcile.Options) (*reconcile.RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := s.runner.Run(ctx, opts)
	if result != nil && !result.DryRun && result.RowsChanged() > 0 {
		s.reload(ctx, "sync")
	}
	return result, err
}

func (s *Scheduler) reload(ctx context.Context, trigger string) {
	if _, err := s.cache.ReloadOnRequest(ctx, trigger); err != nil {
		log.Error().Err(err).Str("trigger", trigger).Msg("Read cache reload failed")
	}
}
