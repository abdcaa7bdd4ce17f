package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Viewer transport
	s.echo.GET("/ws/:sessionKey", s.handleWebSocket)
	s.echo.GET("/sessions/:sessionKey", s.handleGetSession)

	// Ingest lifecycle signals from the media edge
	s.echo.POST("/ingest/started", s.handleIngestStarted)
	s.echo.POST("/ingest/ended", s.handleIngestEnded)
	s.echo.PUT("/sessions/:sessionKey/metadata", s.handleUpdateMetadata)

	// Owner schedule management
	s.echo.POST("/schedule", s.handleCreateSchedule)
	s.echo.DELETE("/schedule/:id", s.handleDeleteSchedule)
}
