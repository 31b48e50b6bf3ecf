package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"recallwatch/internal/auth"
	"recallwatch/internal/events"
	"recallwatch/internal/logging"
	"recallwatch/internal/metrics"
	"recallwatch/internal/pipeline"
	"recallwatch/internal/rawlayer"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (pipeline.Report, error)
}

// Server serves the raw layer read API and triggers ingestion runs. At most
// one run executes at a time.
type Server struct {
	Repo     *rawlayer.Repo
	Hub      *events.Hub
	Tokens   auth.TokenService
	Login    *auth.Handler // optional operator login
	Metrics  *metrics.Metrics
	Runner   Runner
	Defaults pipeline.Options
	Log      logrus.FieldLogger

	mu      sync.Mutex
	running string // id of the active run, "" when idle
	last    *pipeline.Report
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewServer(repo *rawlayer.Repo, hub *events.Hub, tokens auth.TokenService, m *metrics.Metrics, runner Runner, defaults pipeline.Options, log logrus.FieldLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Repo:     repo,
		Hub:      hub,
		Tokens:   tokens,
		Metrics:  m,
		Runner:   runner,
		Defaults: defaults,
		Log:      logging.OrDiscard(log),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dialect": s.Repo.Dialect})
	})
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	r.GET("/ws", events.WSHandler(s.Hub))

	s.registerRawRoutes(r)

	if s.Login != nil {
		s.Login.RegisterRoutes(r.Group("/auth"))
	}

	r.GET("/ingest", s.ingestStatus)
	r.POST("/ingest", auth.RequireOperator(s.Tokens), s.ingest)
	return r
}

func (s *Server) ready(c *gin.Context) {
	stats := s.Hub.Stats()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.Repo.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"db_error":   err.Error(),
			"ws_clients": stats.WSClients,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"db":         "ok",
		"ws_clients": stats.WSClients,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

// Shutdown cancels an active run and waits for it to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
