// Package api assembles the echo server of the account service.
package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/educapi/account-service/docs"
	"github.com/educapi/account-service/internal/api/handler"
	"github.com/educapi/account-service/internal/api/middleware"
	"github.com/educapi/account-service/internal/core/ports"
)

const basePath = "/v1/api"

// Dependencies carries everything the router wires into handlers.
// Registerer and Gatherer default to the global Prometheus registry.
type Dependencies struct {
	Accounts ports.AccountService
	Events   ports.EventPublisher
	Checks   map[string]handler.Check
	Log      zerolog.Logger

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "accounts",
		Subsystem:  "http",
		Registerer: deps.Registerer,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/metrics" || strings.HasPrefix(p, "/swagger")
		},
	}))

	// --- Accounts ---
	accounts := handler.NewAccountHandler(deps.Accounts, deps.Events)

	v1 := e.Group(basePath)
	v1.POST("/users", accounts.Register)
	v1.POST("/auth/login", accounts.Login)

	bearer := middleware.BearerToken()
	v1.GET("/auth/users", accounts.Current, bearer)
	v1.PUT("/auth/users", accounts.Update, bearer)
	v1.DELETE("/auth/users", accounts.Delete, bearer)

	// --- Health probes (no auth required) ---
	health := handler.NewHealthHandler(deps.Checks)
	e.GET("/health", health.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", health.Readiness) // readiness – are dependencies up?

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: deps.Gatherer,
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
