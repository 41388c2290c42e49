package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/proxy-bench/internal/config"
	"github.com/proxy-bench/internal/metrics"
	"github.com/proxy-bench/internal/progress"
	log "github.com/sirupsen/logrus"
)

const visitorIdleTimeout = 10 * time.Minute

// Server exposes the state of a running benchmark: /health, /progress and
// optionally the Prometheus endpoint.
type Server struct {
	addr       string
	reporter   *progress.Reporter
	router     *gin.Engine
	limiter    *ipLimiter
	httpServer *http.Server
	done       chan struct{}
	closeOnce  sync.Once
	started    time.Time
}

// NewServer builds the router. gatherer backs the metrics endpoint and
// defaults to prometheus.DefaultGatherer; collector may be nil.
func NewServer(cfg config.APIConfig, metricsCfg config.MetricsConfig, reporter *progress.Reporter,
	collector *metrics.Collector, gatherer prometheus.Gatherer) *Server {

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:     cfg.Addr,
		reporter: reporter,
		router:   gin.New(),
		started:  time.Now(),
	}

	s.router.Use(gin.Recovery(), requestLogger())
	if collector != nil {
		s.router.Use(requestMetrics(collector))
	}

	s.router.GET("/health", s.handleHealth)
	if metricsCfg.Enabled {
		s.router.GET(metricsCfg.Endpoint, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	protected := s.router.Group("/")
	if cfg.EnableAPIKeyAuth {
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			log.Warnf("API key not set in %s, authentication disabled", cfg.APIKeyEnv)
		}
		protected.Use(requireAPIKey(key))
	}
	if cfg.EnableIPRateLimit {
		s.limiter = newIPLimiter(cfg.RateLimitPerMinute)
		protected.Use(limitPerIP(s.limiter))
	}
	protected.GET("/progress", s.handleProgress)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.done = make(chan struct{})

	return s
}

// Handler returns the router for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown and returns nil after a clean shutdown.
func (s *Server) Start() error {
	if s.limiter != nil {
		go s.evictVisitors()
	}

	log.Infof("Starting status API on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	log.Info("Shutting down status API...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) evictVisitors() {
	ticker := time.NewTicker(visitorIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if removed := s.limiter.evict(visitorIdleTimeout); removed > 0 {
				log.Debugf("Evicted %d idle API clients", removed)
			}
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleProgress(c *gin.Context) {
	done, total := s.reporter.Snapshot()

	percent := 0.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100.0
	}

	c.JSON(http.StatusOK, gin.H{
		"done":            done,
		"total":           total,
		"percent":         percent,
		"finished":        total > 0 && done >= total,
		"elapsed_seconds": time.Since(s.started).Seconds(),
	})
}
