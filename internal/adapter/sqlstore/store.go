// Package sqlstore reads the weather and disaster tables from a SQL database.
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are supported.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const (
	dateLayout = "2006-01-02"
	// Rows per INSERT, kept well under both drivers' bind parameter limits.
	insertBatch = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS weather_regions (
		position INTEGER NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS weather_readings (
		date TEXT NOT NULL,
		region TEXT NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (date, region)
	)`,
	`CREATE TABLE IF NOT EXISTS disasters (
		position INTEGER NOT NULL PRIMARY KEY,
		year INTEGER NOT NULL,
		region TEXT NOT NULL,
		damage_amount DOUBLE PRECISION NOT NULL,
		deaths INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_disasters_region ON disasters(region)`,
}

// Store implements domain.DataProvider on top of a SQL database.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// Open connects to the database. It does not create tables; call Migrate.
func Open(driver, dsn string) (*Store, error) {
	var placeholders sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholders = sq.Question
	case DriverPostgres:
		placeholders = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection keeps writes serialized.
		db.SetMaxOpenConns(1)
	}

	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholders),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Seed replaces the contents of all tables with the given data.
func (s *Store) Seed(ctx context.Context, table domain.WeatherTable, records []domain.DisasterRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, t := range []string{"weather_regions", "weather_readings", "disasters"} {
		query, args, err := s.sb.Delete(t).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}

	regions := make([][]any, 0, len(table.Regions))
	for i, name := range table.Regions {
		regions = append(regions, []any{i, name})
	}
	if err := s.insert(ctx, tx, "weather_regions", []string{"position", "name"}, regions); err != nil {
		return err
	}

	var readings [][]any
	for _, rec := range table.Records {
		date := rec.Date.Format(dateLayout)
		for _, region := range table.Regions {
			if v, ok := rec.Temperatures[region]; ok {
				readings = append(readings, []any{date, region, v})
			}
		}
	}
	if err := s.insert(ctx, tx, "weather_readings", []string{"date", "region", "temperature"}, readings); err != nil {
		return err
	}

	disasters := make([][]any, 0, len(records))
	for i, r := range records {
		disasters = append(disasters, []any{i, r.Year, r.Region, r.DamageAmount, r.Deaths})
	}
	if err := s.insert(ctx, tx, "disasters", []string{"position", "year", "region", "damage_amount", "deaths"}, disasters); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) insert(ctx context.Context, tx *sqlx.Tx, table string, columns []string, rows [][]any) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		b := s.sb.Insert(table).Columns(columns...)
		for _, row := range rows[start:end] {
			b = b.Values(row...)
		}
		query, args, err := b.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

type readingRow struct {
	Date        string  `db:"date"`
	Region      string  `db:"region"`
	Temperature float64 `db:"temperature"`
}

// Weather loads the weather table. Region order follows the seeded order.
func (s *Store) Weather(ctx context.Context) (domain.WeatherTable, error) {
	query, args, err := s.sb.Select("name").From("weather_regions").OrderBy("position").ToSql()
	if err != nil {
		return domain.WeatherTable{}, err
	}
	regions := []string{}
	if err := s.db.SelectContext(ctx, &regions, query, args...); err != nil {
		return domain.WeatherTable{}, fmt.Errorf("query weather regions: %w", err)
	}

	query, args, err = s.sb.Select("date", "region", "temperature").
		From("weather_readings").
		OrderBy("date", "region").
		ToSql()
	if err != nil {
		return domain.WeatherTable{}, err
	}
	var rows []readingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return domain.WeatherTable{}, fmt.Errorf("query weather readings: %w", err)
	}

	table := domain.WeatherTable{Regions: regions}
	for _, row := range rows {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return domain.WeatherTable{}, fmt.Errorf("%w: weather reading date %q", domain.ErrSchemaViolation, row.Date)
		}
		if !domain.IsFinite(row.Temperature) {
			return domain.WeatherTable{}, fmt.Errorf("%w: weather reading %s/%s is not finite", domain.ErrSchemaViolation, row.Date, row.Region)
		}
		n := len(table.Records)
		if n == 0 || !table.Records[n-1].Date.Equal(date) {
			table.Records = append(table.Records, domain.WeatherRecord{Date: date, Temperatures: map[string]float64{}})
			n++
		}
		table.Records[n-1].Temperatures[row.Region] = row.Temperature
	}
	return table, nil
}

// Disasters loads every disaster record in insertion order.
func (s *Store) Disasters(ctx context.Context) ([]domain.DisasterRecord, error) {
	return s.disastersForRegions(ctx)
}

// disastersForRegions loads the disaster records for the given regions, or all
// of them when none are given.
func (s *Store) disastersForRegions(ctx context.Context, regions ...string) ([]domain.DisasterRecord, error) {
	b := s.sb.Select("year", "region", "damage_amount", "deaths").
		From("disasters").
		OrderBy("position")
	if len(regions) > 0 {
		b = b.Where(sq.Eq{"region": regions})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	records := []domain.DisasterRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("query disasters: %w", err)
	}
	for _, rec := range records {
		if !domain.IsFinite(rec.DamageAmount) {
			return nil, fmt.Errorf("%w: disaster %s/%d damage_amount is not finite", domain.ErrSchemaViolation, rec.Region, rec.Year)
		}
	}
	return records, nil
}
