// Package session orchestrates simulation requests against the tables loaded
// for the current session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
)

const publishTimeout = 10 * time.Second

// ErrNotReady is returned by every read while no snapshot has been loaded.
var ErrNotReady = errors.New("session tables not loaded")

// Publisher receives every successful report.
type Publisher interface {
	Publish(ctx context.Context, report Report) error
}

// purger is implemented by caching providers; Reload purges them so it always
// reads through to the source.
type purger interface {
	Purge()
}

// pinger is implemented by providers holding a live connection, such as a
// SQL store.
type pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Service. Zero values fall back to package defaults.
type Options struct {
	Model             domain.DamageModel
	Unit              string
	DefaultIterations int
	MaxIterations     int
	DefaultTopN       int
	DefaultSeed       *uint64
	Clock             clockwork.Clock
	Publisher         Publisher
}

// Service serves simulations and table reads from an atomically swapped
// snapshot.
type Service struct {
	provider domain.DataProvider
	opts     Options
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	snapshot atomic.Pointer[Snapshot]
}

// New creates a Service. No tables are loaded until Reload or Run.
func New(provider domain.DataProvider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if opts.Model.Sensitivity == 0 {
		opts.Model = domain.DamageModel{Sensitivity: domain.DefaultSensitivity}
	}
	if opts.DefaultIterations <= 0 {
		opts.DefaultIterations = 1000
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 100000
	}
	if opts.DefaultTopN <= 0 {
		opts.DefaultTopN = 5
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		provider: provider,
		opts:     opts,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a snapshot is loaded and, for providers
// backed by a connection, the connection answers.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if s.snapshot.Load() == nil {
		return ErrNotReady
	}
	if p, ok := s.provider.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("provider unreachable: %w", err)
		}
	}
	return nil
}

// Snapshot returns the current snapshot, or ErrNotReady.
func (s *Service) Snapshot() (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Reload loads fresh tables from the provider and swaps them in. On failure
// the previous snapshot stays in place.
func (s *Service) Reload(ctx context.Context) error {
	if p, ok := s.provider.(purger); ok {
		p.Purge()
	}

	start := s.clock.Now()
	snap, err := Load(ctx, s.provider, start)
	s.metrics.SessionLoadSeconds.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		s.metrics.SessionLoads.WithLabelValues("error").Inc()
		return err
	}

	s.snapshot.Store(snap)
	s.metrics.SessionLoads.WithLabelValues("success").Inc()
	s.metrics.SessionLoaded.Set(1)
	s.logger.Info("session tables loaded",
		"regions", len(snap.Weather.Regions),
		"weather_rows", len(snap.Weather.Records),
		"disaster_rows", len(snap.Disasters),
	)
	return nil
}

// Run performs the initial load, retrying with exponential backoff until it
// succeeds or ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	// Start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		err := s.Reload(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error("load session tables failed", "error", err, "retry_in", backoff)
		if !s.sleep(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// Simulate runs one request to completion.
func (s *Service) Simulate(ctx context.Context, req Request) (Report, error) {
	start := s.clock.Now()
	report, err := s.simulate(req)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrInvalidParameter) {
			outcome = "invalid"
		}
		s.metrics.SimulationsTotal.WithLabelValues(outcome).Inc()
		return Report{}, err
	}

	s.metrics.SimulationsTotal.WithLabelValues("success").Inc()
	s.metrics.SimulationDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.SimulationSize.Observe(float64(report.Params.Iterations))
	for _, w := range report.Warnings {
		s.metrics.DataWarnings.WithLabelValues(w.Kind).Inc()
		s.logger.Warn("simulation data fallback", "kind", w.Kind, "region", w.Region, "message", w.Message)
	}

	s.publish(ctx, report)
	return report, nil
}

func (s *Service) simulate(req Request) (Report, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return Report{}, err
	}

	iterations := s.opts.DefaultIterations
	if req.Iterations != nil {
		iterations = *req.Iterations
	}
	if iterations > s.opts.MaxIterations {
		return Report{}, fmt.Errorf("%w: iterations %d exceeds the maximum of %d", domain.ErrInvalidParameter, iterations, s.opts.MaxIterations)
	}
	topN := s.opts.DefaultTopN
	if req.TopN != nil {
		topN = *req.TopN
	}
	seed := s.opts.DefaultSeed
	if req.Seed != nil {
		seed = req.Seed
	}

	var base float64
	var warnings []domain.Warning
	switch {
	case req.BaseDamage != nil:
		base = *req.BaseDamage
		warnings = domain.ValidateBaseDamage(req.Region, base)
	case req.Region != "":
		base, warnings = domain.BaselineForRegion(snap.Disasters, req.Region)
	default:
		return Report{}, fmt.Errorf("%w: region or base_damage is required", domain.ErrInvalidParameter)
	}

	params := domain.SimulationParams{
		BaseDamage:       base,
		MeanTempIncrease: req.MeanTempIncrease,
		StdTempIncrease:  req.StdTempIncrease,
		Iterations:       iterations,
		Seed:             seed,
	}
	sample, err := s.opts.Model.Simulate(params)
	if err != nil {
		return Report{}, err
	}
	ranking, err := domain.TopRegions(snap.Disasters, topN)
	if err != nil {
		return Report{}, err
	}
	if warnings == nil {
		warnings = []domain.Warning{}
	}

	return Report{
		RunID:       uuid.NewString(),
		GeneratedAt: s.clock.Now().UTC(),
		Region:      req.Region,
		Unit:        s.opts.Unit,
		Params:      params,
		Warnings:    warnings,
		Summary:     domain.Summarize(sample),
		Sample:      sample,
		TopRegions:  ranking,
	}, nil
}

func (s *Service) publish(ctx context.Context, report Report) {
	if s.opts.Publisher == nil {
		return
	}
	// The report is already computed; a client disconnect must not drop it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.opts.Publisher.Publish(ctx, report); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Error("publish report failed", "error", err, "run_id", report.RunID)
		return
	}
	s.metrics.ReportsPublished.Inc()
}

// TopRegions ranks the session's disaster records.
func (s *Service) TopRegions(_ context.Context, n int) (domain.RegionRanking, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return domain.TopRegions(snap.Disasters, n)
}

// Baseline resolves the simulation base damage of a region.
func (s *Service) Baseline(_ context.Context, region string) (Baseline, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return Baseline{}, err
	}
	if region == "" {
		return Baseline{}, fmt.Errorf("%w: region is required", domain.ErrInvalidParameter)
	}
	base, warnings := domain.BaselineForRegion(snap.Disasters, region)
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	return Baseline{Region: region, BaseDamage: base, Unit: s.opts.Unit, Warnings: warnings}, nil
}

// Stats aggregates the session's disaster records per region.
func (s *Service) Stats(_ context.Context) ([]domain.RegionStat, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return domain.RegionStats(snap.Disasters), nil
}

// Weather returns the rows dated within [start, end]; zero bounds are open.
func (s *Service) Weather(_ context.Context, start, end time.Time) (domain.WeatherTable, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return domain.WeatherTable{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return domain.WeatherTable{}, fmt.Errorf("%w: end %s is before start %s", domain.ErrInvalidParameter,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return snap.Weather.Between(start, end), nil
}

// Series returns one region's temperature readings within [start, end].
func (s *Service) Series(ctx context.Context, region string, start, end time.Time) ([]domain.SeriesPoint, error) {
	table, err := s.Weather(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if !table.HasRegion(region) {
		return nil, fmt.Errorf("%w: unknown region %q", domain.ErrInvalidParameter, region)
	}
	return table.Series(region), nil
}

// Regions lists the weather table's region columns.
func (s *Service) Regions(_ context.Context) ([]string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return append([]string{}, snap.Weather.Regions...), nil
}

// Unit is the currency label of every damage value the service returns.
func (s *Service) Unit() string {
	return s.opts.Unit
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
