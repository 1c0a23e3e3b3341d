package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/catalog"
	"github.com/tremornet/tremor-monitor/internal/config"
	"github.com/tremornet/tremor-monitor/internal/logstore"
	"github.com/tremornet/tremor-monitor/internal/metadata"
	"github.com/tremornet/tremor-monitor/internal/metrics"
)

// Server is the Read API's HTTP front end (C11): a chi router carrying
// the teacher's middleware stack, the four §4.11 read endpoints, the
// health/stream supplements, and the embedded HTML catalog browser.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions bundles Server's collaborators and tunables.
type ServerOptions struct {
	Addr     string
	Config   *config.Store
	Metadata *metadata.Cache
	LogStore *logstore.Store
	Catalog  *catalog.Writer

	Scheduler   SchedulerStats // satisfied by *scheduler.Scheduler
	Broadcaster *Broadcaster
	WebFiles    fs.FS

	CORSOrigins        []string
	RateLimitRPS       float64
	RateLimitBurst     int
	RequestTimeout     time.Duration
	StaleTickThreshold time.Duration

	StartTime time.Time
	Log       zerolog.Logger
}

// NewServer builds the router and wraps it in an *http.Server, but does
// not start listening — call Start.
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(CORSWithOrigins(opts.CORSOrigins))
	r.Use(RateLimiter(opts.RateLimitRPS, opts.RateLimitBurst))
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))

	health := NewHealthHandler(opts.Scheduler, opts.Metadata, opts.Catalog, opts.StartTime, opts.StaleTickThreshold)
	r.Get("/api/v1/health", health.ServeHTTP)

	if collectorSource, ok := opts.Scheduler.(metrics.SchedulerStats); ok {
		collector := metrics.NewCollector(collectorSource, opts.Catalog)
		prometheus.MustRegister(collector)
	}
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(MaxBodySize(1 << 20))
		r.Use(metrics.InstrumentHandler)
		r.Use(ResponseTimeout(opts.RequestTimeout))

		NewDataHandler(opts.Config, opts.Metadata, opts.LogStore, opts.Catalog).Routes(r)

		r.Route("/api/v1", func(r chi.Router) {
			NewStreamHandler(opts.Broadcaster).Routes(r)
		})
	})

	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32"><rect width="32" height="32" rx="6" fill="#0f1117"/><path d="M4 20h4l3-9 4 14 3-11 3 6h7" stroke="#6fd3ff" stroke-width="2" fill="none" stroke-linecap="round" stroke-linejoin="round"/></svg>`))
	})

	if opts.WebFiles != nil {
		r.Handle("/*", http.FileServer(http.FS(opts.WebFiles)))
	}

	srv := &http.Server{
		Addr:        opts.Addr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		// WriteTimeout left at 0 so the SSE stream can live indefinitely;
		// ResponseTimeout bounds every other handler individually.
		WriteTimeout: 0,
	}

	return &Server{http: srv, log: opts.Log}
}

// Start runs the HTTP server until Shutdown is called. Returns nil on a
// clean shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("read api starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("read api shutting down")
	return s.http.Shutdown(ctx)
}
