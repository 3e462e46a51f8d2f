package remote

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
)

// CachedProvider wraps a DataProvider and keeps the last successful copy of
// each table until its TTL runs out.
type CachedProvider struct {
	inner     domain.DataProvider
	weather   *memo[domain.WeatherTable]
	disasters *memo[[]domain.DisasterRecord]
	metrics   *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a provider. A nil clock
// means the real clock.
func NewCachedProvider(inner domain.DataProvider, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedProvider{
		inner:     inner,
		weather:   newMemo[domain.WeatherTable](ttl, clock),
		disasters: newMemo[[]domain.DisasterRecord](ttl, clock),
		metrics:   metrics,
	}
}

func (c *CachedProvider) Weather(ctx context.Context) (domain.WeatherTable, error) {
	if table, ok := c.weather.get(); ok {
		c.observe(tableWeather, "hit")
		return table, nil
	}
	c.observe(tableWeather, "miss")
	table, err := c.inner.Weather(ctx)
	if err != nil {
		return table, err
	}
	c.weather.set(table)
	return table, nil
}

func (c *CachedProvider) Disasters(ctx context.Context) ([]domain.DisasterRecord, error) {
	if records, ok := c.disasters.get(); ok {
		c.observe(tableDisasters, "hit")
		return append([]domain.DisasterRecord(nil), records...), nil
	}
	c.observe(tableDisasters, "miss")
	records, err := c.inner.Disasters(ctx)
	if err != nil {
		return nil, err
	}
	// Failures are not cached so the next call retries.
	c.disasters.set(append([]domain.DisasterRecord(nil), records...))
	return records, nil
}

// Purge drops every cached table, forcing the next call to hit the inner provider.
func (c *CachedProvider) Purge() {
	c.weather.clear()
	c.disasters.clear()
}

func (c *CachedProvider) observe(table, result string) {
	if c.metrics != nil {
		c.metrics.RemoteCache.WithLabelValues(table, result).Inc()
	}
}

// memo holds a single value until it expires.
type memo[V any] struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	value   V
	expires time.Time
	ok      bool
}

func newMemo[V any](ttl time.Duration, clock clockwork.Clock) *memo[V] {
	return &memo[V]{ttl: ttl, clock: clock}
}

func (m *memo[V]) get() (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ok && !m.clock.Now().Before(m.expires) {
		m.reset()
	}
	return m.value, m.ok
}

func (m *memo[V]) set(value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.expires = m.clock.Now().Add(m.ttl)
	m.ok = true
}

func (m *memo[V]) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *memo[V]) reset() {
	var zero V
	m.value = zero
	m.ok = false
}
