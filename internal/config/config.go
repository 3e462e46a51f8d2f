package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Data sources.
const (
	SourceFixture = "fixture"
	SourceFile    = "file"
	SourceRemote  = "remote"
	SourceSQL     = "sql"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Data provider selection.
	DataSource     string
	DataDir        string
	FixtureSeed    int64
	RemoteBaseURL  string
	RemoteTimeout  time.Duration
	RemoteCacheTTL time.Duration
	SQLDriver      string
	SQLDSN         string

	// Damage model and request defaults.
	DamageSensitivity float64
	DamageUnit        string
	DefaultIterations int
	MaxIterations     int
	DefaultTopN       int
	SimulationSeed    *uint64

	// Optional publishing of reports to Kafka.
	ResultsKafkaEnabled bool
	KafkaBrokers        []string
	ResultsTopic        string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	remoteTimeout, err := parsePositiveDuration("REMOTE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	remoteTTL, err := parsePositiveDuration("REMOTE_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}

	fixtureSeed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("FIXTURE_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid FIXTURE_SEED")
	}

	sensitivity, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("DAMAGE_SENSITIVITY", "0.2"), 64)
	if err != nil || sensitivity <= 0 {
		return nil, errors.New("invalid DAMAGE_SENSITIVITY: must be a positive number")
	}

	defaultIterations, err := parsePositiveInt("DEFAULT_ITERATIONS", "1000")
	if err != nil {
		return nil, err
	}
	maxIterations, err := parsePositiveInt("MAX_ITERATIONS", "100000")
	if err != nil {
		return nil, err
	}
	defaultTopN, err := parsePositiveInt("DEFAULT_TOP_N", "5")
	if err != nil {
		return nil, err
	}

	var simulationSeed *uint64
	if s := os.Getenv("SIMULATION_SEED"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, errors.New("invalid SIMULATION_SEED")
		}
		simulationSeed = &v
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataSource:     strings.ToLower(sharedcfg.EnvOrDefault("DATA_SOURCE", SourceFixture)),
		DataDir:        sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		FixtureSeed:    fixtureSeed,
		RemoteBaseURL:  strings.TrimRight(os.Getenv("REMOTE_BASE_URL"), "/"),
		RemoteTimeout:  remoteTimeout,
		RemoteCacheTTL: remoteTTL,
		SQLDriver:      sharedcfg.EnvOrDefault("SQL_DRIVER", "sqlite"),
		SQLDSN:         os.Getenv("SQL_DSN"),

		DamageSensitivity: sensitivity,
		DamageUnit:        sharedcfg.EnvOrDefault("DAMAGE_UNIT", "hundred million KRW"),
		DefaultIterations: defaultIterations,
		MaxIterations:     maxIterations,
		DefaultTopN:       defaultTopN,
		SimulationSeed:    simulationSeed,

		ResultsKafkaEnabled: os.Getenv("RESULTS_KAFKA_ENABLED") == "true",
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		ResultsTopic:        sharedcfg.EnvOrDefault("RESULTS_TOPIC", "ecorisk-simulations"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataSource {
	case SourceFixture, SourceFile, SourceRemote, SourceSQL:
	default:
		return fmt.Errorf("invalid DATA_SOURCE %q: want fixture, file, remote or sql", c.DataSource)
	}
	if c.DataSource == SourceRemote && c.RemoteBaseURL == "" {
		return errors.New("DATA_SOURCE is remote but REMOTE_BASE_URL is not set")
	}
	if c.DataSource == SourceSQL && c.SQLDSN == "" {
		return errors.New("DATA_SOURCE is sql but SQL_DSN is not set")
	}
	if c.SQLDriver != "sqlite" && c.SQLDriver != "pgx" {
		return fmt.Errorf("invalid SQL_DRIVER %q: want sqlite or pgx", c.SQLDriver)
	}
	if c.DefaultIterations > c.MaxIterations {
		return errors.New("DEFAULT_ITERATIONS must not exceed MAX_ITERATIONS")
	}
	if c.ResultsKafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when RESULTS_KAFKA_ENABLED is true")
		}
		if c.ResultsTopic == "" {
			return errors.New("RESULTS_TOPIC is required when RESULTS_KAFKA_ENABLED is true")
		}
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
