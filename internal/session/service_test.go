package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/fixture"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
)

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// --- mocks ---

type mockPublisher struct {
	mu      sync.Mutex
	reports []Report
	ctxErrs []error
	err     error
}

func (m *mockPublisher) Publish(ctx context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

type flakyProvider struct {
	domain.DataProvider
	failures int
	calls    int
	purged   int
}

func (p *flakyProvider) Weather(ctx context.Context) (domain.WeatherTable, error) {
	p.calls++
	if p.calls <= p.failures {
		return domain.WeatherTable{}, errors.New("source unavailable")
	}
	return p.DataProvider.Weather(ctx)
}

func (p *flakyProvider) Purge() { p.purged++ }

func newTestService(t *testing.T, opts Options) (*Service, *observability.Metrics) {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clockwork.NewFakeClockAt(testNow)
	}
	if opts.Unit == "" {
		opts.Unit = "hundred million KRW"
	}
	metrics := observability.NewMetricsForTesting()
	svc := New(fixture.NewProvider(fixture.DefaultWeatherConfig()), opts, testLogger(), metrics)
	require.NoError(t, svc.Reload(context.Background()))
	return svc, metrics
}

// --- readiness and loading ---

func TestService_NotReadyBeforeLoad(t *testing.T) {
	svc := New(fixture.NewProvider(fixture.DefaultWeatherConfig()), Options{}, testLogger(), observability.NewMetricsForTesting())
	ctx := context.Background()

	assert.ErrorIs(t, svc.CheckReadiness(ctx), ErrNotReady)
	_, err := svc.Simulate(ctx, Request{Region: "RegionA"})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = svc.TopRegions(ctx, 3)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = svc.Regions(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestService_Reload(t *testing.T) {
	svc, metrics := newTestService(t, Options{})

	require.NoError(t, svc.CheckReadiness(context.Background()))
	snap, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, testNow, snap.LoadedAt)
	assert.Len(t, snap.Disasters, 4)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionLoads.WithLabelValues("success")))
}

func TestService_ReloadFailureKeepsPreviousSnapshot(t *testing.T) {
	provider := &flakyProvider{DataProvider: fixture.NewProvider(fixture.DefaultWeatherConfig())}
	metrics := observability.NewMetricsForTesting()
	svc := New(provider, Options{Clock: clockwork.NewFakeClockAt(testNow)}, testLogger(), metrics)
	ctx := context.Background()

	require.NoError(t, svc.Reload(ctx))
	before, err := svc.Snapshot()
	require.NoError(t, err)

	provider.failures = provider.calls + 1
	require.Error(t, svc.Reload(ctx))

	after, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Equal(t, 2, provider.purged)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionLoads.WithLabelValues("error")))
}

func TestService_RunRetriesUntilLoaded(t *testing.T) {
	provider := &flakyProvider{
		DataProvider: fixture.NewProvider(fixture.DefaultWeatherConfig()),
		failures:     2,
	}
	clock := clockwork.NewFakeClockAt(testNow)
	svc := New(provider, Options{Clock: clock}, testLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	for _, wait := range []time.Duration{200 * time.Millisecond, 400 * time.Millisecond} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(wait)
	}

	require.NoError(t, <-done)
	assert.NoError(t, svc.CheckReadiness(ctx))
	assert.Equal(t, 3, provider.calls)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	provider := &flakyProvider{
		DataProvider: fixture.NewProvider(fixture.DefaultWeatherConfig()),
		failures:     1 << 30,
	}
	svc := New(provider, Options{Clock: clockwork.NewFakeClockAt(testNow)}, testLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
	assert.ErrorIs(t, svc.CheckReadiness(ctx), ErrNotReady)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(4*time.Second, 5*time.Second))
}

// --- simulation ---

func TestService_SimulateFromRegionBaseline(t *testing.T) {
	pub := &mockPublisher{}
	svc, metrics := newTestService(t, Options{Publisher: pub})

	report, err := svc.Simulate(context.Background(), Request{
		Region:           "RegionA",
		MeanTempIncrease: 2,
		StdTempIncrease:  0.5,
		Iterations:       ptr(500),
		Seed:             ptr(uint64(7)),
		TopN:             ptr(2),
	})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(report.RunID)
	require.NoError(t, parseErr)
	assert.Equal(t, testNow, report.GeneratedAt)
	assert.Equal(t, "hundred million KRW", report.Unit)
	assert.InDelta(t, 1.35, report.Params.BaseDamage, 1e-12)
	assert.Len(t, report.Sample, 500)
	assert.Equal(t, 500, report.Summary.Count)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, domain.RegionRanking{
		{Region: "RegionA", Damage: 2.7},
		{Region: "RegionC", Damage: 2.1},
	}, roundRanking(report.TopRegions))

	require.Len(t, pub.reports, 1)
	assert.Equal(t, report.RunID, pub.reports[0].RunID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SimulationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsPublished))
}

func TestService_SimulateIsReproducibleWithSeed(t *testing.T) {
	svc, _ := newTestService(t, Options{DefaultSeed: ptr(uint64(99))})
	req := Request{BaseDamage: ptr(10.0), MeanTempIncrease: 1.5, StdTempIncrease: 0.3}

	a, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.Sample, b.Sample)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Len(t, a.Sample, 1000, "default iterations apply when unset")
}

func TestService_SimulateUnknownRegionFallsBackToZero(t *testing.T) {
	svc, metrics := newTestService(t, Options{})

	report, err := svc.Simulate(context.Background(), Request{
		Region:           "Atlantis",
		MeanTempIncrease: 2,
		StdTempIncrease:  1,
		Iterations:       ptr(50),
	})
	require.NoError(t, err)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, domain.WarningMissingData, report.Warnings[0].Kind)
	assert.Zero(t, report.Params.BaseDamage)
	for _, v := range report.Sample {
		assert.Zero(t, v)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DataWarnings.WithLabelValues(domain.WarningMissingData)))
}

func TestService_SimulateNegativeBaseWarns(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	report, err := svc.Simulate(context.Background(), Request{BaseDamage: ptr(-1.0), Iterations: ptr(10)})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, domain.WarningNegativeBaseline, report.Warnings[0].Kind)
}

func TestService_SimulateZeroIterations(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	report, err := svc.Simulate(context.Background(), Request{BaseDamage: ptr(1.0), Iterations: ptr(0)})
	require.NoError(t, err)
	assert.NotNil(t, report.Sample)
	assert.Empty(t, report.Sample)
	assert.Equal(t, domain.SampleSummary{}, report.Summary)
}

func TestService_SimulateInvalid(t *testing.T) {
	svc, metrics := newTestService(t, Options{MaxIterations: 100})
	cases := map[string]Request{
		"negative std":    {BaseDamage: ptr(1.0), StdTempIncrease: -0.1},
		"too many":        {BaseDamage: ptr(1.0), Iterations: ptr(101)},
		"negative top n":  {BaseDamage: ptr(1.0), TopN: ptr(-1)},
		"no base, no reg": {MeanTempIncrease: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Simulate(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
		})
	}
	assert.Equal(t, float64(len(cases)), testutil.ToFloat64(metrics.SimulationsTotal.WithLabelValues("invalid")))
}

func TestService_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	svc, metrics := newTestService(t, Options{Publisher: pub})

	_, err := svc.Simulate(context.Background(), Request{BaseDamage: ptr(1.0), Iterations: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
}

// --- reads ---

func TestService_Reads(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	regions, err := svc.Regions(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixture.DefaultRegions, regions)

	ranking, err := svc.TopRegions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, ranking, 3)

	baseline, err := svc.Baseline(ctx, "RegionB")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, baseline.BaseDamage, 1e-12)
	assert.Empty(t, baseline.Warnings)

	_, err = svc.Baseline(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "RegionA", stats[0].Region)
	assert.Equal(t, 2, stats[0].Records)
}

func TestService_WeatherAndSeries(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	start := time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, time.March, 31, 0, 0, 0, 0, time.UTC)

	table, err := svc.Weather(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, table.Records, 31)

	series, err := svc.Series(ctx, "RegionC", start, end)
	require.NoError(t, err)
	assert.Len(t, series, 31)

	_, err = svc.Series(ctx, "Atlantis", start, end)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = svc.Weather(ctx, end, start)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func roundRanking(r domain.RegionRanking) domain.RegionRanking {
	out := make(domain.RegionRanking, len(r))
	for i, e := range r {
		out[i] = domain.RegionDamage{Region: e.Region, Damage: float64(int(e.Damage*1000+0.5)) / 1000}
	}
	return out
}

func TestService_PublishOutlivesCanceledRequest(t *testing.T) {
	pub := &mockPublisher{}
	svc, metrics := newTestService(t, Options{Publisher: pub})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Simulate(ctx, Request{BaseDamage: ptr(1.0), Iterations: ptr(10)})
	require.NoError(t, err)

	require.Len(t, pub.reports, 1)
	assert.Equal(t, []error{nil}, pub.ctxErrs)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsPublished))
}

type pingingProvider struct {
	domain.DataProvider
	err error
}

func (p *pingingProvider) Ping(context.Context) error { return p.err }

func TestService_ReadinessPingsConnectedProvider(t *testing.T) {
	provider := &pingingProvider{DataProvider: fixture.NewProvider(fixture.DefaultWeatherConfig())}
	svc := New(provider, Options{Clock: clockwork.NewFakeClockAt(testNow)}, testLogger(), observability.NewMetricsForTesting())
	ctx := context.Background()

	assert.ErrorIs(t, svc.CheckReadiness(ctx), ErrNotReady)
	require.NoError(t, svc.Reload(ctx))
	require.NoError(t, svc.CheckReadiness(ctx))

	provider.err = errors.New("connection refused")
	err := svc.CheckReadiness(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
