package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
	"github.com/pucco93/ebsi-access-control/internal/infra/config"
	"github.com/pucco93/ebsi-access-control/internal/transport/http/handlers"
	"github.com/pucco93/ebsi-access-control/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Accounts    handlers.AccountCommands
	Permissions handlers.PermissionCommands
	Roles       handlers.RoleCommands
	Resources   handlers.ResourceCommands
	Users       handlers.UserCommands
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	State    handlers.StateReader
	Services ServiceSet
	History  port.OutcomeHistory
	Keygen   handlers.KeyGenerator
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.Console.CORSOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	if deps.State == nil {
		return r
	}

	api := r.Group("/api/v1")
	{
		handlers.NewConsoleHandler(deps.State, deps.Services.Accounts, deps.History).RegisterRoutes(api)

		if deps.Services.Permissions != nil && deps.Services.Roles != nil && deps.Services.Resources != nil {
			handlers.NewEntityHandler(deps.State, deps.Services.Permissions, deps.Services.Roles, deps.Services.Resources).RegisterRoutes(api)
		}

		if deps.Services.Users != nil {
			handlers.NewUserHandler(deps.State, deps.Services.Users, deps.Keygen).RegisterRoutes(api)
		}
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
