package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, SourceFixture, cfg.DataSource)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, int64(42), cfg.FixtureSeed)
	assert.Empty(t, cfg.RemoteBaseURL)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RemoteCacheTTL)
	assert.Equal(t, "sqlite", cfg.SQLDriver)
	assert.InDelta(t, 0.2, cfg.DamageSensitivity, 1e-12)
	assert.Equal(t, "hundred million KRW", cfg.DamageUnit)
	assert.Equal(t, 1000, cfg.DefaultIterations)
	assert.Equal(t, 100000, cfg.MaxIterations)
	assert.Equal(t, 5, cfg.DefaultTopN)
	assert.Nil(t, cfg.SimulationSeed)
	assert.False(t, cfg.ResultsKafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "ecorisk-simulations", cfg.ResultsTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATA_SOURCE", "REMOTE")
	t.Setenv("REMOTE_BASE_URL", "http://tables.internal/api/")
	t.Setenv("REMOTE_TIMEOUT", "2s")
	t.Setenv("REMOTE_CACHE_TTL", "1m")
	t.Setenv("DAMAGE_SENSITIVITY", "0.35")
	t.Setenv("DAMAGE_UNIT", "million USD")
	t.Setenv("DEFAULT_ITERATIONS", "500")
	t.Setenv("MAX_ITERATIONS", "5000")
	t.Setenv("DEFAULT_TOP_N", "3")
	t.Setenv("SIMULATION_SEED", "42")
	t.Setenv("RESULTS_KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("RESULTS_TOPIC", "custom-results")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, SourceRemote, cfg.DataSource)
	assert.Equal(t, "http://tables.internal/api", cfg.RemoteBaseURL)
	assert.Equal(t, 2*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, time.Minute, cfg.RemoteCacheTTL)
	assert.InDelta(t, 0.35, cfg.DamageSensitivity, 1e-12)
	assert.Equal(t, "million USD", cfg.DamageUnit)
	assert.Equal(t, 500, cfg.DefaultIterations)
	assert.Equal(t, 5000, cfg.MaxIterations)
	assert.Equal(t, 3, cfg.DefaultTopN)
	require.NotNil(t, cfg.SimulationSeed)
	assert.Equal(t, uint64(42), *cfg.SimulationSeed)
	assert.True(t, cfg.ResultsKafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-results", cfg.ResultsTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"REMOTE_TIMEOUT", "bad", "REMOTE_TIMEOUT"},
		{"REMOTE_CACHE_TTL", "-1m", "REMOTE_CACHE_TTL"},
		{"FIXTURE_SEED", "abc", "FIXTURE_SEED"},
		{"DAMAGE_SENSITIVITY", "0", "DAMAGE_SENSITIVITY"},
		{"DAMAGE_SENSITIVITY", "steep", "DAMAGE_SENSITIVITY"},
		{"DEFAULT_ITERATIONS", "-5", "DEFAULT_ITERATIONS"},
		{"MAX_ITERATIONS", "many", "MAX_ITERATIONS"},
		{"DEFAULT_TOP_N", "0", "DEFAULT_TOP_N"},
		{"SIMULATION_SEED", "-1", "SIMULATION_SEED"},
		{"DATA_SOURCE", "ftp", "DATA_SOURCE"},
		{"SQL_DRIVER", "mysql", "SQL_DRIVER"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_DefaultIterationsAboveMax(t *testing.T) {
	t.Setenv("DEFAULT_ITERATIONS", "2000")
	t.Setenv("MAX_ITERATIONS", "1000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_ITERATIONS")
}

func TestLoad_RemoteRequiresBaseURL(t *testing.T) {
	t.Setenv("DATA_SOURCE", "remote")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMOTE_BASE_URL")
}

func TestLoad_SQLRequiresDSN(t *testing.T) {
	t.Setenv("DATA_SOURCE", "sql")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQL_DSN")

	t.Setenv("SQL_DSN", "file:ecorisk.db")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceSQL, cfg.DataSource)
}
