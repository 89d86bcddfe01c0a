package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"autotrader/internal/session"
)

type startRequest struct {
	Instrument string `json:"instrument"`
	Mode       string `json:"mode"`
}

func (s *Server) startSession(c *gin.Context) {
	userKey := c.Param("user")
	if userKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	var req startRequest
	// Body is optional; defaults apply when absent.
	_ = c.ShouldBindJSON(&req)

	mode := session.Mode(req.Mode)
	switch mode {
	case "", session.ModeLive, session.ModePaper:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be live or paper"})
		return
	}

	res, err := s.Orchestrator.StartSession(c.Request.Context(), userKey, req.Instrument, mode)
	if err != nil {
		if errors.Is(err, session.ErrAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) stopSession(c *gin.Context) {
	userKey := c.Param("user")
	if userKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	summary, err := s.Orchestrator.StopSession(c.Request.Context(), userKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getSessionStatus(c *gin.Context) {
	userKey := c.Param("user")
	if userKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}
	c.JSON(http.StatusOK, s.Orchestrator.SessionStatus(userKey))
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orchestrator.Metrics().GetSnapshot(s.Orchestrator.ActiveSessions()))
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"use_mock_feed":   s.Meta.UseMockFeed,
		"instruments":     s.Meta.Instruments,
		"venues":          s.Meta.Venues,
		"version":         s.Meta.Version,
		"active_sessions": s.Orchestrator.ActiveSessions(),
	})
}
