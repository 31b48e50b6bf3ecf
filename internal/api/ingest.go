package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recallwatch/internal/auth"
	"recallwatch/internal/config"
	"recallwatch/internal/identity"
	"recallwatch/internal/pipeline"
)

// ingestReq overrides the server's default run options. Empty fields keep
// the defaults.
type ingestReq struct {
	Make      string   `json:"make"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Model     string   `json:"model"`
	ModelYear string   `json:"model_year"`
	Only      []string `json:"only"`
}

func (r ingestReq) apply(base pipeline.Options) (pipeline.Options, error) {
	opts := base
	if v := strings.TrimSpace(r.Make); v != "" {
		opts.Make = v
	}
	if v := strings.TrimSpace(r.Start); v != "" {
		opts.Start = v
	}
	if v := strings.TrimSpace(r.End); v != "" {
		opts.End = v
	}
	if v := strings.TrimSpace(r.Model); v != "" {
		opts.Model = v
	}
	if v := strings.TrimSpace(r.ModelYear); v != "" {
		opts.ModelYear = v
	}
	if err := config.ValidateWindow(opts.Start, opts.End); err != nil {
		return opts, err
	}
	if len(r.Only) > 0 {
		opts.Categories = nil
		for _, o := range r.Only {
			c, err := identity.ParseCategory(o)
			if err != nil {
				return opts, err
			}
			opts.Categories = append(opts.Categories, c)
		}
	}
	return opts, nil
}

// ingest starts a run in the background and answers 202 with its id, or 409
// when another run is active.
func (s *Server) ingest(c *gin.Context) {
	var req ingestReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	opts, err := req.apply(s.Defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts.RunID = uuid.NewString()

	s.mu.Lock()
	if s.running != "" {
		active := s.running
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "run already in progress", "run_id": active})
		return
	}
	s.running = opts.RunID
	s.wg.Add(1)
	s.mu.Unlock()

	log := s.Log.WithFields(logrus.Fields{"run_id": opts.RunID})
	if claims := auth.MustGetClaims(c); claims != nil {
		log = log.WithField("operator", claims.Subject)
	}
	log.Info("ingest triggered")

	go func() {
		defer s.wg.Done()
		rep, err := s.Runner.Run(s.baseCtx, opts)
		if err != nil {
			log.WithError(err).Warn("triggered run failed")
		}

		s.mu.Lock()
		s.running = ""
		s.last = &rep
		s.mu.Unlock()
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": opts.RunID, "status": "accepted"})
}

func (s *Server) ingestStatus(c *gin.Context) {
	s.mu.Lock()
	running, last := s.running, s.last
	s.mu.Unlock()

	resp := gin.H{"running": running != ""}
	if running != "" {
		resp["run_id"] = running
	}
	if last != nil {
		resp["last"] = last
	}
	if ev, ok := s.Hub.Last(); ok {
		resp["last_event"] = ev
	}
	c.JSON(http.StatusOK, resp)
}
