package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/metrics"
)

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// PageMessage carries a DOM snapshot and the page request to run on it.
type PageMessage struct {
	URL     string             `json:"url" binding:"required"`
	HTML    string             `json:"html"`
	Request messaging.Request `json:"request"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) backgroundMessage(c *gin.Context) {
	var req messaging.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messaging.Failure(err))
		return
	}

	res, err := s.bus.Send(c.Request.Context(), messaging.TargetBackground, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) pageMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSnapshot)

	var msg PageMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, messaging.Failure(err))
		return
	}

	page, err := extract.ParsePage(msg.URL, msg.HTML)
	if err != nil {
		c.JSON(http.StatusBadRequest, messaging.Failure(err))
		return
	}

	h := messaging.NewPageHandler(s.engine, page, s.bus, s.logger)
	h.OnScrape = metrics.RecordScrape
	c.JSON(http.StatusOK, h.Handle(c.Request.Context(), msg.Request))
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, messaging.ErrNoListener):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	s.logger.Warn("message failed", "path", c.FullPath(), "err", err)
	c.JSON(status, messaging.Failure(err))
}
