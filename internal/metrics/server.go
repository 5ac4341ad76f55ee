package metrics

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server exposes /metrics and /healthz.
type Server struct {
	exporter *Exporter
	started  time.Time
	maxAge   time.Duration
}

// NewServer returns an http.Server for addr. The health check fails once no
// poll has completed for maxAge.
func NewServer(addr string, exporter *Exporter, maxAge time.Duration) *http.Server {
	s := &Server{
		exporter: exporter,
		started:  time.Now(),
		maxAge:   maxAge,
	}

	return &http.Server{
		Addr:         addr,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	e.GET("/healthz", s.HealthCheckHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	if s.exporter.Healthy(s.started, s.maxAge) {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}
