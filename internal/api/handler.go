// Package api exposes the trading core over HTTP: session lifecycle,
// metrics and a websocket event stream.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autotrader/internal/events"
	"autotrader/internal/session"
)

// Server wires HTTP endpoints around the orchestrator and the event bus.
type Server struct {
	Router       *gin.Engine
	Bus          *events.Bus
	Orchestrator *session.Orchestrator
	Meta         SystemMeta
}

// SystemMeta describes runtime status exposed to operators.
type SystemMeta struct {
	UseMockFeed bool
	Instruments []string
	Venues      []string
	Version     string
}

func NewServer(orch *session.Orchestrator, bus *events.Bus, meta SystemMeta) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:       r,
		Bus:          bus,
		Orchestrator: orch,
		Meta:         meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)
		api.GET("/system/status", s.getSystemStatus)

		sessions := api.Group("/sessions")
		{
			sessions.POST("/:user/start", s.startSession)
			sessions.POST("/:user/stop", s.stopSession)
			sessions.GET("/:user", s.getSessionStatus)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
