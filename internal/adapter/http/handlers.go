package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ecorisk-service/internal/adapter/export"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/render"
	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/session"
)

const (
	maxBodyBytes = 1 << 20
	contentPNG   = "image/png"
)

type weatherRow struct {
	Date         string             `json:"date"`
	Temperatures map[string]float64 `json:"temperatures"`
}

type weatherResponse struct {
	Regions []string     `json:"regions"`
	Records []weatherRow `json:"records"`
}

type rankingResponse struct {
	Unit    string               `json:"unit"`
	Total   float64              `json:"total"`
	Regions domain.RegionRanking `json:"regions"`
	Shares  []domain.RegionShare `json:"shares"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.svc.Regions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"regions": regions})
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	baseline, err := s.svc.Baseline(r.Context(), r.PathValue("region"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, baseline)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	table, err := s.svc.Weather(r.Context(), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := weatherResponse{Regions: table.Regions, Records: make([]weatherRow, len(table.Records))}
	for i, rec := range table.Records {
		resp.Records[i] = weatherRow{Date: rec.Date.Format(time.DateOnly), Temperatures: rec.Temperatures}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.ranking(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rankingResponse{
		Unit:    s.svc.Unit(),
		Total:   ranking.Total(),
		Regions: ranking,
		Shares:  ranking.Shares(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	report, ok := s.simulate(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		s.writeError(w, fmt.Errorf("%w: format must be csv or xlsx, got %q", domain.ErrInvalidParameter, format))
		return
	}

	report, ok := s.simulate(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	contentType := export.ContentTypeCSV
	var err error
	if format == "xlsx" {
		contentType = export.ContentTypeXLSX
		err = export.WriteReportXLSX(&buf, report)
	} else {
		err = export.WriteSampleCSV(&buf, report.Sample)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("X-Run-ID", report.RunID)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="simulation-%s.%s"`, report.RunID, format))
	writeBytes(w, contentType, buf.Bytes())
}

func (s *Server) handleWeatherChart(w http.ResponseWriter, r *http.Request) {
	region, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok || region == "" {
		http.NotFound(w, r)
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	series, err := s.svc.Series(r.Context(), region, start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.LineChart(&buf, series, "Daily temperature, "+region); err != nil {
		s.writeError(w, err)
		return
	}
	writeBytes(w, contentPNG, buf.Bytes())
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	bins, err := intParam(r, "bins", 30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, ok := s.simulate(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render.Histogram(&buf, report.Sample, bins, report.Unit); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("X-Run-ID", report.RunID)
	writeBytes(w, contentPNG, buf.Bytes())
}

func (s *Server) handleShareChart(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.ranking(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.ShareChart(&buf, ranking); err != nil {
		s.writeError(w, err)
		return
	}
	writeBytes(w, contentPNG, buf.Bytes())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reload(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) ranking(r *http.Request) (domain.RegionRanking, error) {
	n, err := intParam(r, "top", s.defaultTopN)
	if err != nil {
		return nil, err
	}
	return s.svc.TopRegions(r.Context(), n)
}

// simulate decodes a Request body and runs it, writing the error response
// itself when it fails.
func (s *Server) simulate(w http.ResponseWriter, r *http.Request) (session.Report, bool) {
	var req session.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: decode request: %v", domain.ErrInvalidParameter, err))
		return session.Report{}, false
	}

	report, err := s.svc.Simulate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return session.Report{}, false
	}
	return report, true
}

func parseDateRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		if start, err = time.Parse(time.DateOnly, v); err != nil {
			return start, end, fmt.Errorf("%w: start must be YYYY-MM-DD, got %q", domain.ErrInvalidParameter, v)
		}
	}
	if v := q.Get("end"); v != "" {
		if end, err = time.Parse(time.DateOnly, v); err != nil {
			return start, end, fmt.Errorf("%w: end must be YYYY-MM-DD, got %q", domain.ErrInvalidParameter, v)
		}
	}
	return start, end, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidParameter, name, v)
	}
	return n, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotReady):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON responds with a 500 error body when v cannot be encoded.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n')) //nolint:errcheck // client may have gone away
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}
