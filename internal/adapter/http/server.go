package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/session"
)

// Service is the session API the server exposes.
type Service interface {
	sharedobs.ReadinessChecker
	Simulate(ctx context.Context, req session.Request) (session.Report, error)
	TopRegions(ctx context.Context, n int) (domain.RegionRanking, error)
	Baseline(ctx context.Context, region string) (session.Baseline, error)
	Weather(ctx context.Context, start, end time.Time) (domain.WeatherTable, error)
	Series(ctx context.Context, region string, start, end time.Time) ([]domain.SeriesPoint, error)
	Regions(ctx context.Context) ([]string, error)
	Reload(ctx context.Context) error
	Unit() string
}

// Server exposes the risk API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer  *http.Server
	svc         Service
	defaultTopN int
	logger      *slog.Logger
}

// NewServer creates an HTTP server with the API, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, svc Service, defaultTopN int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:         svc,
		defaultTopN: defaultTopN,
		logger:      logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/regions", s.handleRegions)
	mux.HandleFunc("GET /api/v1/regions/{region}/baseline", s.handleBaseline)
	mux.HandleFunc("GET /api/v1/weather", s.handleWeather)
	mux.HandleFunc("GET /api/v1/rankings", s.handleRankings)
	mux.HandleFunc("POST /api/v1/simulations", s.handleSimulate)
	mux.HandleFunc("POST /api/v1/simulations/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/charts/weather/{file}", s.handleWeatherChart)
	mux.HandleFunc("POST /api/v1/charts/histogram.png", s.handleHistogram)
	mux.HandleFunc("GET /api/v1/charts/share.png", s.handleShareChart)
	mux.HandleFunc("POST /api/v1/reload", s.handleReload)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
