package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sachinkaru123/inventory-bridge/internal/bridge"
	"github.com/sachinkaru123/inventory-bridge/internal/errors"
	"github.com/sachinkaru123/inventory-bridge/internal/platform/config"
	"github.com/sachinkaru123/inventory-bridge/internal/platform/correlation"
)

// redisPinger is the minimal interface the readiness check needs.
type redisPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	bridge      *bridge.Bridge
	redisClient redisPinger
	startTime   time.Time
}

func NewServer(cfg *config.Config, b *bridge.Bridge, redisClient redisPinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		bridge:      b,
		redisClient: redisClient,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// correlationMiddleware assigns each request a correlation ID so every log
// line it produces can be tied back together.
func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
