package domain

import "context"

// DataProvider supplies the session tables. Implementations validate their
// source and return ErrSchemaViolation before any table reaches the core.
type DataProvider interface {
	// Weather returns the full wide weather table.
	Weather(ctx context.Context) (WeatherTable, error)

	// Disasters returns every disaster record.
	Disasters(ctx context.Context) ([]DisasterRecord, error)
}
