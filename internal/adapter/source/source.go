// Package source builds the configured domain.DataProvider.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecorisk-service/internal/adapter/csvfile"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/remote"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/sqlstore"
	"github.com/couchcryptid/ecorisk-service/internal/config"
	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/fixture"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
)

// New returns the provider selected by cfg.DataSource and a function that
// releases its resources.
func New(ctx context.Context, cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (domain.DataProvider, func() error, error) {
	noop := func() error { return nil }

	switch cfg.DataSource {
	case config.SourceFixture:
		wc := fixture.DefaultWeatherConfig()
		wc.Seed = cfg.FixtureSeed
		logger.Info("using fixture tables", "seed", wc.Seed, "days", wc.Days)
		return fixture.NewProvider(wc), noop, nil

	case config.SourceFile:
		logger.Info("using csv tables", "dir", cfg.DataDir)
		return csvfile.NewProvider(cfg.DataDir), noop, nil

	case config.SourceRemote:
		client := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteTimeout, metrics, logger)
		logger.Info("using remote tables",
			"base_url", cfg.RemoteBaseURL,
			"timeout", cfg.RemoteTimeout,
			"cache_ttl", cfg.RemoteCacheTTL,
		)
		return remote.NewCachedProvider(client, cfg.RemoteCacheTTL, clock, metrics), noop, nil

	case config.SourceSQL:
		store, err := sqlstore.Open(cfg.SQLDriver, cfg.SQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("using sql tables", "driver", cfg.SQLDriver)
		return store, store.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
}
