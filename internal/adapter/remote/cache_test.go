package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
)

// --- mock for cache tests ---

type countingProvider struct {
	weatherCalls  int
	disasterCalls int
	err           error
}

func (p *countingProvider) Weather(_ context.Context) (domain.WeatherTable, error) {
	p.weatherCalls++
	if p.err != nil {
		return domain.WeatherTable{}, p.err
	}
	return domain.WeatherTable{Regions: []string{"RegionA"}}, nil
}

func (p *countingProvider) Disasters(_ context.Context) ([]domain.DisasterRecord, error) {
	p.disasterCalls++
	if p.err != nil {
		return nil, p.err
	}
	return []domain.DisasterRecord{{Year: 2020, Region: "RegionA", DamageAmount: 1.5}}, nil
}

// --- CachedProvider tests ---

func TestCachedProvider_CacheHit(t *testing.T) {
	inner := &countingProvider{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedProvider(inner, time.Minute, clockwork.NewFakeClock(), metrics)
	ctx := context.Background()

	for range 3 {
		table, err := cached.Weather(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"RegionA"}, table.Regions)

		records, err := cached.Disasters(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}

	assert.Equal(t, 1, inner.weatherCalls, "should only call inner once")
	assert.Equal(t, 1, inner.disasterCalls, "should only call inner once")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RemoteCache.WithLabelValues(tableWeather, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RemoteCache.WithLabelValues(tableWeather, "miss")))
}

func TestCachedProvider_Expiry(t *testing.T) {
	inner := &countingProvider{}
	clock := clockwork.NewFakeClock()
	cached := NewCachedProvider(inner, time.Minute, clock, nil)
	ctx := context.Background()

	_, err := cached.Disasters(ctx)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = cached.Disasters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.disasterCalls)

	clock.Advance(time.Second)
	_, err = cached.Disasters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.disasterCalls, "entry should expire after the TTL")
}

func TestCachedProvider_ErrorsNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("boom")}
	cached := NewCachedProvider(inner, time.Minute, clockwork.NewFakeClock(), nil)

	_, err := cached.Weather(context.Background())
	require.Error(t, err)
	inner.err = nil
	_, err = cached.Weather(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.weatherCalls)
}

func TestCachedProvider_ReturnsCopies(t *testing.T) {
	cached := NewCachedProvider(&countingProvider{}, time.Minute, clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	first, err := cached.Disasters(ctx)
	require.NoError(t, err)
	first[0].Region = "mutated"

	second, err := cached.Disasters(ctx)
	require.NoError(t, err)
	assert.Equal(t, "RegionA", second[0].Region)
}

func TestCachedProvider_Purge(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner, time.Minute, clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	_, _ = cached.Weather(ctx)
	cached.Purge()
	_, _ = cached.Weather(ctx)
	assert.Equal(t, 2, inner.weatherCalls)
}

// --- memo unit tests ---

func TestMemo_SetGet(t *testing.T) {
	m := newMemo[string](time.Hour, clockwork.NewFakeClock())

	_, ok := m.get()
	assert.False(t, ok)

	m.set("A")
	v, ok := m.get()
	assert.True(t, ok)
	assert.Equal(t, "A", v)
}

func TestMemo_SetRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newMemo[string](time.Minute, clock)

	m.set("A1")
	clock.Advance(50 * time.Second)
	m.set("A2")
	clock.Advance(50 * time.Second)

	v, ok := m.get()
	assert.True(t, ok)
	assert.Equal(t, "A2", v)

	clock.Advance(10 * time.Second)
	v, ok = m.get()
	assert.False(t, ok)
	assert.Empty(t, v, "expired values are dropped on read")
}

func TestMemo_Clear(t *testing.T) {
	m := newMemo[[]int](time.Hour, clockwork.NewFakeClock())
	m.set([]int{1})
	m.clear()

	v, ok := m.get()
	assert.False(t, ok)
	assert.Nil(t, v)
}
