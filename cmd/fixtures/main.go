// Command fixtures writes the deterministic fixture tables to CSV files and,
// optionally, seeds a SQL database with them. The output is what the service
// serves with DATA_SOURCE=fixture, so file and sql sources can be checked
// against it.
//
// Usage:
//
//	go run ./cmd/fixtures -dir data -seed 42
//	go run ./cmd/fixtures -dir data -sql-driver sqlite -sql-dsn data/ecorisk.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/couchcryptid/ecorisk-service/internal/adapter/csvfile"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/sqlstore"
	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	def := fixture.DefaultWeatherConfig()

	dir := flag.String("dir", "data", "output directory for weather.csv and disaster.csv")
	seed := flag.Int64("seed", def.Seed, "noise seed for the weather table")
	days := flag.Int("days", def.Days, "number of daily weather rows")
	start := flag.String("start", def.Start.Format(time.DateOnly), "first weather date (YYYY-MM-DD)")
	regions := flag.String("regions", strings.Join(def.Regions, ","), "comma-separated region columns")
	sqlDriver := flag.String("sql-driver", sqlstore.DriverSQLite, "sql driver for seeding: sqlite or pgx")
	sqlDSN := flag.String("sql-dsn", "", "if set, also seed this database")
	flag.Parse()

	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive")
	}

	cfg := fixture.WeatherConfig{
		Regions: splitRegions(*regions),
		Start:   startDate,
		Days:    *days,
		Seed:    *seed,
	}
	if len(cfg.Regions) == 0 {
		return fmt.Errorf("-regions must name at least one region")
	}

	table := fixture.Weather(cfg)
	disasters := fixture.Disasters()

	if err := csvfile.WriteDir(*dir, table, disasters); err != nil {
		return fmt.Errorf("writing csv fixtures: %w", err)
	}
	log.Printf("wrote %s (%d rows) and %s (%d rows) to %s",
		csvfile.WeatherFile, len(table.Records), csvfile.DisasterFile, len(disasters), *dir)

	if *sqlDSN != "" {
		if err := seedDatabase(context.Background(), *sqlDriver, *sqlDSN, table, disasters); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		log.Printf("seeded %s database", *sqlDriver)
	}

	printStats(table, disasters)
	return nil
}

func splitRegions(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func seedDatabase(ctx context.Context, driver, dsn string, table domain.WeatherTable, disasters []domain.DisasterRecord) error {
	store, err := sqlstore.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return store.Seed(ctx, table, disasters)
}

func printStats(table domain.WeatherTable, disasters []domain.DisasterRecord) {
	fmt.Println("\n=== Fixture stats ===")
	for _, region := range table.Regions {
		mean, _ := table.MeanTemperature(region)
		fmt.Printf("%s: mean temperature %.2f °C\n", region, mean)
	}
	for _, s := range domain.RegionStats(disasters) {
		fmt.Printf("%s: total damage %g over %d records (%d-%d), %d deaths\n",
			s.Region, s.TotalDamage, s.Records, s.FirstYear, s.LastYear, s.Deaths)
	}
}
