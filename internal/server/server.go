// Package server exposes the coordination core over HTTP: the viewer
// WebSocket endpoint, ingest lifecycle webhooks, schedule management, health
// and metrics.
package server

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/castwire/castwire/internal/app"
	"github.com/castwire/castwire/internal/config"
	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/gateway"
)

// scheduleCreator is the slice of the schedule repository the HTTP layer
// needs for owner actions.
type scheduleCreator interface {
	CreateEntry(ctx context.Context, entry domain.ScheduledEntry) (domain.ScheduledEntry, error)
	DeleteEntry(ctx context.Context, id string) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       *app.Service
	gateway   *gateway.Gateway
	schedules scheduleCreator
	limits    *ConnectionLimits
	clock     clockwork.Clock
}

func NewServer(cfg *config.Config, appSvc *app.Service, gw *gateway.Gateway, schedules scheduleCreator, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       appSvc,
		gateway:   gw,
		schedules: schedules,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		clock:     clock,
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
