package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"recallwatch/internal/rawlayer"
)

func (s *Server) registerRawRoutes(r gin.IRouter) {
	r.GET("/recalls", s.listRecalls)
	r.GET("/recalls/:pk", s.getRecall)
	r.GET("/complaints", s.listComplaints)
	r.GET("/complaints/:pk", s.getComplaint)
	r.GET("/runs", s.listRuns)
	r.GET("/runs/:id", s.getRun)
}

func listQuery(c *gin.Context) rawlayer.ListQuery {
	return rawlayer.ListQuery{
		Make:   c.Query("make"),
		Limit:  parseInt(c.Query("limit"), rawlayer.DefaultLimit),
		Offset: parseInt(c.Query("offset"), 0),
	}
}

func (s *Server) listRecalls(c *gin.Context) {
	q := listQuery(c)
	total, err := s.Repo.CountRecalls(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "count failed", err)
		return
	}
	items, err := s.Repo.ListRecalls(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "limit": q.Limit, "offset": q.Offset, "items": items})
}

func (s *Server) getRecall(c *gin.Context) {
	rec, err := s.Repo.GetRecall(c.Request.Context(), c.Param("pk"))
	if err != nil {
		s.internalError(c, "get failed", err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) listComplaints(c *gin.Context) {
	q := listQuery(c)
	total, err := s.Repo.CountComplaints(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "count failed", err)
		return
	}
	items, err := s.Repo.ListComplaints(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "limit": q.Limit, "offset": q.Offset, "items": items})
}

func (s *Server) getComplaint(c *gin.Context) {
	rec, err := s.Repo.GetComplaint(c.Request.Context(), c.Param("pk"))
	if err != nil {
		s.internalError(c, "get failed", err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) listRuns(c *gin.Context) {
	q := listQuery(c)
	items, err := s.Repo.ListRuns(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": q.Limit, "offset": q.Offset, "items": items})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.Repo.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.internalError(c, "get failed", err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.Log.WithError(err).WithField("path", c.FullPath()).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
