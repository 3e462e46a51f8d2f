// Package remote fetches the weather and disaster tables from an HTTP JSON
// API. It is a thin ingestion adapter: one request per table, a timeout, and
// an optional TTL cache in front.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
)

// Table names, used for paths, cache keys and metric labels.
const (
	tableWeather   = "weather"
	tableDisasters = "disasters"
)

const dateLayout = "2006-01-02"

// Client implements domain.DataProvider against a remote table API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for baseURL, e.g. "https://tables.example.com/v1".
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Weather fetches GET {base}/weather.
func (c *Client) Weather(ctx context.Context) (domain.WeatherTable, error) {
	var resp weatherResponse
	if err := c.get(ctx, tableWeather, &resp); err != nil {
		return domain.WeatherTable{}, err
	}
	return resp.toDomain()
}

// Disasters fetches GET {base}/disasters.
func (c *Client) Disasters(ctx context.Context) ([]domain.DisasterRecord, error) {
	var resp disastersResponse
	if err := c.get(ctx, tableDisasters, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain()
}

func (c *Client) get(ctx context.Context, table string, out any) error {
	start := time.Now()
	err := c.doRequest(ctx, c.baseURL+"/"+table, out)
	c.metrics.RemoteDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
		c.logger.Warn("remote table fetch failed", "table", table, "error", err)
	}
	c.metrics.RemoteRequests.WithLabelValues(table, outcome).Inc()
	return err
}

func (c *Client) doRequest(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("table API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrSchemaViolation, err)
	}
	return nil
}

// Table API response types.

type weatherResponse struct {
	Regions []string     `json:"regions"`
	Records []weatherRow `json:"records"`
}

type weatherRow struct {
	Date         string             `json:"date"` // YYYY-MM-DD
	Temperatures map[string]float64 `json:"temperatures"`
}

type disastersResponse struct {
	Records []disasterRow `json:"records"`
}

type disasterRow struct {
	Year         int      `json:"year"`
	Region       string   `json:"region"`
	DamageAmount *float64 `json:"damage_amount"`
	Deaths       int      `json:"deaths"`
}

func (r weatherResponse) toDomain() (domain.WeatherTable, error) {
	if r.Regions == nil {
		return domain.WeatherTable{}, fmt.Errorf("%w: weather response missing regions", domain.ErrSchemaViolation)
	}
	table := domain.WeatherTable{
		Regions: r.Regions,
		Records: make([]domain.WeatherRecord, 0, len(r.Records)),
	}
	for i, row := range r.Records {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return domain.WeatherTable{}, fmt.Errorf("%w: weather record %d: invalid date %q", domain.ErrSchemaViolation, i, row.Date)
		}
		temps := row.Temperatures
		if temps == nil {
			temps = map[string]float64{}
		}
		for region, v := range temps {
			if !domain.IsFinite(v) {
				return domain.WeatherTable{}, fmt.Errorf("%w: weather record %d: temperature for %s is not finite", domain.ErrSchemaViolation, i, region)
			}
		}
		table.Records = append(table.Records, domain.WeatherRecord{Date: date, Temperatures: temps})
	}
	return table, nil
}

func (r disastersResponse) toDomain() ([]domain.DisasterRecord, error) {
	records := make([]domain.DisasterRecord, 0, len(r.Records))
	for i, row := range r.Records {
		if row.Region == "" {
			return nil, fmt.Errorf("%w: disaster record %d: missing region", domain.ErrSchemaViolation, i)
		}
		if row.DamageAmount == nil {
			return nil, fmt.Errorf("%w: disaster record %d: missing damage_amount", domain.ErrSchemaViolation, i)
		}
		if !domain.IsFinite(*row.DamageAmount) {
			return nil, fmt.Errorf("%w: disaster record %d: damage_amount is not finite", domain.ErrSchemaViolation, i)
		}
		if row.Deaths < 0 {
			return nil, errors.Join(domain.ErrSchemaViolation, fmt.Errorf("disaster record %d: negative deaths", i))
		}
		records = append(records, domain.DisasterRecord{
			Year:         row.Year,
			Region:       row.Region,
			DamageAmount: *row.DamageAmount,
			Deaths:       row.Deaths,
		})
	}
	return records, nil
}
