// Package csvfile reads and writes the weather and disaster tables as CSV
// files in a data directory.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
)

// File names inside the data directory.
const (
	WeatherFile  = "weather.csv"
	DisasterFile = "disaster.csv"
)

// DateLayout is the weather table's date format.
const DateLayout = "2006-01-02"

// Column names after header normalization.
const (
	colDate         = "date"
	colYear         = "year"
	colRegion       = "region"
	colDamage       = "damage_amount_hundred_million_won"
	colDamageShort  = "damage_amount"
	colDeaths       = "deaths"
	disasterHeaders = colYear + "," + colRegion + "," + colDamage + "," + colDeaths
)

// Provider reads tables from a directory on every call. It never creates
// missing files.
type Provider struct {
	dir string
}

// NewProvider returns a file-backed provider rooted at dir.
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

// Weather reads weather.csv.
func (p *Provider) Weather(ctx context.Context) (domain.WeatherTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.WeatherTable{}, err
	}
	f, err := os.Open(filepath.Join(p.dir, WeatherFile))
	if err != nil {
		return domain.WeatherTable{}, fmt.Errorf("open weather table: %w", err)
	}
	defer f.Close()
	return ReadWeather(f)
}

// Disasters reads disaster.csv.
func (p *Provider) Disasters(ctx context.Context) ([]domain.DisasterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(p.dir, DisasterFile))
	if err != nil {
		return nil, fmt.Errorf("open disaster table: %w", err)
	}
	defer f.Close()
	return ReadDisasters(f)
}

// ReadDisasters parses a disaster table. Headers are trimmed and lower-cased;
// region and a damage column are required, year and deaths are optional.
func ReadDisasters(r io.Reader) ([]domain.DisasterRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read disaster header: %v", domain.ErrSchemaViolation, err)
	}
	index := mapHeaders(header)
	if _, ok := index[colDamage]; !ok {
		if i, short := index[colDamageShort]; short {
			index[colDamage] = i
		}
	}
	if missing := missingHeaders([]string{colRegion, colDamage}, index); len(missing) > 0 {
		return nil, fmt.Errorf("%w: disaster table missing columns: %s", domain.ErrSchemaViolation, strings.Join(missing, ", "))
	}

	var records []domain.DisasterRecord
	line := 1
	for {
		line++
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrSchemaViolation, line, err)
		}
		rec, err := parseDisaster(row, index)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrSchemaViolation, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseDisaster(row []string, index map[string]int) (domain.DisasterRecord, error) {
	region := get(row, index, colRegion)
	if region == "" {
		return domain.DisasterRecord{}, errors.New("empty region")
	}
	raw := get(row, index, colDamage)
	damage, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.DisasterRecord{}, fmt.Errorf("invalid damage amount: %w", err)
	}
	if !domain.IsFinite(damage) {
		return domain.DisasterRecord{}, fmt.Errorf("damage amount %q is not finite", raw)
	}
	rec := domain.DisasterRecord{Region: region, DamageAmount: damage}

	if s := get(row, index, colYear); s != "" {
		if rec.Year, err = strconv.Atoi(s); err != nil {
			return domain.DisasterRecord{}, fmt.Errorf("invalid year: %w", err)
		}
	}
	if s := get(row, index, colDeaths); s != "" {
		if rec.Deaths, err = strconv.Atoi(s); err != nil || rec.Deaths < 0 {
			return domain.DisasterRecord{}, fmt.Errorf("invalid deaths %q", s)
		}
	}
	return rec, nil
}

// ReadWeather parses a wide weather table: a date column plus one numeric
// column per region. Empty cells are treated as missing readings.
func ReadWeather(r io.Reader) (domain.WeatherTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.WeatherTable{}, fmt.Errorf("%w: read weather header: %v", domain.ErrSchemaViolation, err)
	}

	dateIdx := -1
	var regions []string
	regionIdx := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if strings.EqualFold(name, colDate) {
			dateIdx = i
			continue
		}
		if name == "" {
			continue
		}
		regions = append(regions, name)
		regionIdx[name] = i
	}
	if dateIdx < 0 {
		return domain.WeatherTable{}, fmt.Errorf("%w: weather table missing columns: %s", domain.ErrSchemaViolation, colDate)
	}

	table := domain.WeatherTable{Regions: regions}
	line := 1
	for {
		line++
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.WeatherTable{}, fmt.Errorf("%w: line %d: %v", domain.ErrSchemaViolation, line, err)
		}

		date, err := time.Parse(DateLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			return domain.WeatherTable{}, fmt.Errorf("%w: line %d: invalid date: %v", domain.ErrSchemaViolation, line, err)
		}
		rec := domain.WeatherRecord{Date: date, Temperatures: make(map[string]float64, len(regions))}
		for _, region := range regions {
			s := get(row, regionIdx, region)
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return domain.WeatherTable{}, fmt.Errorf("%w: line %d: invalid temperature for %s: %v", domain.ErrSchemaViolation, line, region, err)
			}
			if !domain.IsFinite(v) {
				return domain.WeatherTable{}, fmt.Errorf("%w: line %d: temperature for %s is not finite: %q", domain.ErrSchemaViolation, line, region, s)
			}
			rec.Temperatures[region] = v
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// WriteDisasters writes records with the canonical header.
func WriteDisasters(w io.Writer, records []domain.DisasterRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(disasterHeaders, ",")); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Year),
			r.Region,
			strconv.FormatFloat(r.DamageAmount, 'f', -1, 64),
			strconv.Itoa(r.Deaths),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWeather writes the wide table with regions in table order.
func WriteWeather(w io.Writer, table domain.WeatherTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{colDate}, table.Regions...)); err != nil {
		return err
	}
	for _, r := range table.Records {
		row := make([]string, 0, len(table.Regions)+1)
		row = append(row, r.Date.Format(DateLayout))
		for _, region := range table.Regions {
			v, ok := r.Temperatures[region]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDir writes both tables into dir, creating it if needed.
func WriteDir(dir string, table domain.WeatherTable, records []domain.DisasterRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, WeatherFile), func(w io.Writer) error { return WriteWeather(w, table) }); err != nil {
		return fmt.Errorf("write weather table: %w", err)
	}
	if err := writeFile(filepath.Join(dir, DisasterFile), func(w io.Writer) error { return WriteDisasters(w, records) }); err != nil {
		return fmt.Errorf("write disaster table: %w", err)
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func mapHeaders(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}

func missingHeaders(required []string, index map[string]int) []string {
	var missing []string
	for _, key := range required {
		if _, ok := index[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func get(row []string, index map[string]int, col string) string {
	i, ok := index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
