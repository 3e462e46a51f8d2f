package session

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
)

// Snapshot is an immutable copy of the session tables. It is never mutated
// after Load returns; a reload builds a new one.
type Snapshot struct {
	Weather   domain.WeatherTable
	Disasters []domain.DisasterRecord
	LoadedAt  time.Time
}

// Load reads both tables from the provider.
func Load(ctx context.Context, provider domain.DataProvider, now time.Time) (*Snapshot, error) {
	weather, err := provider.Weather(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weather: %w", err)
	}
	disasters, err := provider.Disasters(ctx)
	if err != nil {
		return nil, fmt.Errorf("load disasters: %w", err)
	}
	return &Snapshot{
		Weather:   weather,
		Disasters: disasters,
		LoadedAt:  now,
	}, nil
}
