// Package api exposes the message contract over HTTP so a thin browser
// extension can post DOM snapshots and store requests to a local stylus
// process.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/metrics"
)

// maxSnapshot bounds a posted page snapshot.
const maxSnapshot = 32 << 20

// Server holds the dependencies shared by the handlers.
type Server struct {
	bus     *messaging.Bus
	engine  *extract.Engine
	logger  *slog.Logger
	started time.Time
}

// NewServer wires handlers over bus. The bus must have a background handler
// registered for /messages to succeed.
func NewServer(bus *messaging.Bus, engine *extract.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{bus: bus, engine: engine, logger: logger, started: time.Now()}
}

// Router builds the gin engine.
//
//	GET  /api/v1/health
//	POST /api/v1/messages        background request
//	POST /api/v1/page/messages   page request against a posted snapshot
//	GET  /metrics
func (s *Server) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.health)
	v1.POST("/messages", s.backgroundMessage)
	v1.POST("/page/messages", s.pageMessage)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
