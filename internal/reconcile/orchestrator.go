// Package reconcile keeps durable storage in step with the stats provider.
// Each phase reads current state, fetches from the provider and writes
// only the rows that differ.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/retry"
	"ttfl_tracker/ingestion/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Provider is the stats provider as consumed by the phases
type Provider interface {
	FetchSchedule(ctx context.Context, season models.Season) ([]models.ScheduleGameInput, error)
	FetchBoxScore(ctx context.Context, gameID string) ([]models.BoxScoreLineInput, error)
	FetchPlayerGameLog(ctx context.Context, playerID int, season models.Season, lastN int) ([]models.GameLogInput, error)
	FetchTeamBaseStats(ctx context.Context, season models.Season) ([]models.TeamBaseStatsInput, error)
	FetchTeamAdvancedStats(ctx context.Context, season models.Season) ([]models.TeamAdvancedStatsInput, error)
	FetchTeamOpponentStats(ctx context.Context, season models.Season) ([]models.TeamOpponentStatsInput, error)
	FetchRoster(ctx context.Context, teamExternalID int, season models.Season) ([]models.TeamRosterInput, error)
}

// InjurySource returns the current league-wide injury list
type InjurySource interface {
	FetchInjuries(ctx context.Context) ([]models.InjuryReport, error)
}

// Invalidator is told when stored scores changed
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Phase names a unit of a sync run
type Phase string

const (
	PhaseStatus   Phase = "status"
	PhaseScores   Phase = "scores"
	PhaseMetrics  Phase = "metrics"
	PhaseInjuries Phase = "injuries"
	PhaseMinutes  Phase = "minutes"
	PhaseRosters  Phase = "rosters"
)

// phaseOrder is the execution order of a run, whatever order phases were requested in
var phaseOrder = []Phase{PhaseStatus, PhaseScores, PhaseMetrics, PhaseInjuries, PhaseMinutes, PhaseRosters}

// DefaultPhases is the nightly set
var DefaultPhases = []Phase{PhaseStatus, PhaseScores, PhaseMetrics, PhaseInjuries}

// ParsePhases parses a comma separated selector. "" and "all" select
// DefaultPhases; "everything" selects every phase.
func ParsePhases(selector string) ([]Phase, error) {
	selector = strings.TrimSpace(strings.ToLower(selector))
	switch selector {
	case "", "all":
		return DefaultPhases, nil
	case "everything":
		return phaseOrder, nil
	}

	var phases []Phase
	for _, part := range strings.Split(selector, ",") {
		name := Phase(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if !knownPhase(name) {
			return nil, fmt.Errorf("unknown phase %q", name)
		}
		phases = append(phases, name)
	}
	if len(phases) == 0 {
		return DefaultPhases, nil
	}
	return phases, nil
}

func knownPhase(p Phase) bool {
	for _, known := range phaseOrder {
		if p == known {
			return true
		}
	}
	return false
}

// Options selects what a run does
type Options struct {
	Phases []Phase
	DryRun bool
}

// StorageError aborts a run. The unit of work that hit it was rolled back;
// units committed earlier stay applied.
type StorageError struct {
	Phase Phase
	Op    string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s phase (%s): %v", e.Phase, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(phase Phase, op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return se
	}
	return &StorageError{Phase: phase, Op: op, Err: err}
}

// Config tunes the orchestrator
type Config struct {
	// SeasonStart bounds the score backfill. Zero uses October 1 of the current season.
	SeasonStart time.Time
	// FallbackRecentGames is how many recent games the fallback game log fetch asks for
	FallbackRecentGames int
	// Retry is the policy applied to every provider call. Schedule and team
	// stats calls use twice its base delay.
	Retry retry.Policy
	// Location decides the current calendar date and season
	Location *time.Location
}

// Orchestrator runs sync phases against one store. Runs must not overlap;
// the caller serializes them.
type Orchestrator struct {
	store       store.Store
	provider    Provider
	injuries    InjurySource
	cfg         Config
	invalidator Invalidator
	now         func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithInvalidator registers a consumer of score changes
func WithInvalidator(inv Invalidator) Option {
	return func(o *Orchestrator) {
		o.invalidator = inv
	}
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator
func New(st store.Store, provider Provider, injuries InjurySource, cfg Config, opts ...Option) *Orchestrator {
	if cfg.FallbackRecentGames <= 0 {
		cfg.FallbackRecentGames = 15
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = retry.DefaultAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = retry.DefaultBaseDelay
	}

	o := &Orchestrator{
		store:    st,
		provider: provider,
		injuries: injuries,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) today() time.Time {
	return models.CivilDate(o.now(), o.cfg.Location)
}

func (o *Orchestrator) season() models.Season {
	return models.SeasonFor(o.today())
}

func (o *Orchestrator) seasonStart() time.Time {
	if !o.cfg.SeasonStart.IsZero() {
		return o.cfg.SeasonStart
	}
	return o.season().DefaultStart()
}

func (o *Orchestrator) policy(call string) retry.Policy {
	return o.cfg.Retry.WithName(call)
}

func (o *Orchestrator) slowPolicy(call string) retry.Policy {
	return o.cfg.Retry.WithName(call).WithBaseDelay(2 * o.cfg.Retry.BaseDelay)
}

// run carries the per-run state handed to every phase
type run struct {
	*Orchestrator
	st     store.Store
	dryRun bool
}

// Run executes the requested phases in order. Provider failures are
// reported inside the phase result and the run continues; a storage
// failure stops the run and is returned with the partial result.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	phases := opts.Phases
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	requested := make(map[Phase]bool, len(phases))
	for _, p := range phases {
		if !knownPhase(p) {
			return nil, fmt.Errorf("unknown phase %q", p)
		}
		requested[p] = true
	}

	result := &RunResult{
		RunID:     uuid.New(),
		StartedAt: o.now().UTC(),
		DryRun:    opts.DryRun,
	}

	logger := log.With().
		Str("run_id", result.RunID.String()).
		Bool("dry_run", opts.DryRun).
		Logger()
	ctx = logger.WithContext(ctx)

	r := &run{Orchestrator: o, st: o.store, dryRun: opts.DryRun}
	if opts.DryRun {
		r.st = readOnly{o.store}
	}

	logger.Info().Int("phases", len(requested)).Msg("Sync run starting")

	for _, phase := range phaseOrder {
		if !requested[phase] {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.finish(o.now(), err)
			return result, err
		}

		start := time.Now()
		rows, providerErr, err := r.runPhase(ctx, phase, result)
		result.Phases = append(result.Phases, phase)

		status := "success"
		switch {
		case err != nil:
			status = "storage_error"
		case providerErr != "":
			status = "provider_error"
		}
		metrics.RecordSync(string(phase), status, time.Since(start).Seconds(), rows)

		if err != nil {
			metrics.RecordError("reconcile", "storage")
			logger.Error().Err(err).Str("phase", string(phase)).Msg("Sync run aborted")
			result.finish(o.now(), err)
			return result, err
		}
		if providerErr != "" {
			metrics.RecordError("reconcile", "provider")
		}

		logger.Info().
			Str("phase", string(phase)).
			Int("rows", rows).
			Dur("duration", time.Since(start)).
			Msg("Sync phase complete")
	}

	result.finish(o.now(), nil)
	if !opts.DryRun {
		metrics.RecordRunSuccess()
	}

	logger.Info().
		Int("rows_changed", result.RowsChanged()).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Sync run complete")

	return result, nil
}

// runPhase dispatches one phase, stores its result and reports rows
// written and any provider error message
func (r *run) runPhase(ctx context.Context, phase Phase, result *RunResult) (int, string, error) {
	switch phase {
	case PhaseStatus:
		res, err := r.reconcileStatus(ctx)
		result.Status = res
		return res.Updated, res.Error, err
	case PhaseScores:
		res, err := r.backfillScores(ctx)
		result.Scores = res
		return res.Inserted(), res.Error, err
	case PhaseMetrics:
		res, err := r.refreshTeamMetrics(ctx)
		result.Metrics = res
		return res.Updated, res.Error, err
	case PhaseInjuries:
		res, err := r.refreshInjuries(ctx)
		result.Injuries = res
		return res.Updated + res.Cleared, res.Error, err
	case PhaseMinutes:
		res, err := r.backfillMinutes(ctx)
		result.Minutes = res
		return res.Updated, res.Error, err
	case PhaseRosters:
		res, err := r.refreshRosters(ctx)
		result.Rosters = res
		return res.Moved + res.Deactivated, res.Error, err
	}
	return 0, "", fmt.Errorf("unknown phase %q", phase)
}

// unit runs fn as one unit of work
func (r *run) unit(ctx context.Context, phase Phase, op string, fn func(st store.Store) error) error {
	if err := r.st.WithinTx(ctx, fn); err != nil {
		return storageError(phase, op, err)
	}
	return nil
}

func (r *run) invalidate(ctx context.Context) {
	if r.dryRun || r.invalidator == nil {
		return
	}
	r.invalidator.Invalidate(ctx)
}

func phaseLogger(ctx context.Context, phase Phase) zerolog.Logger {
	return zerolog.Ctx(ctx).With().Str("phase", string(phase)).Logger()
}
