package main

import (
	"net/http"
	"time"

	"github.com/ashish13377/Intellido/internal/conversation"
	"github.com/ashish13377/Intellido/internal/handlers"
	"github.com/ashish13377/Intellido/internal/middleware"
	"github.com/ashish13377/Intellido/internal/telemetry"
	"github.com/ashish13377/Intellido/internal/tools"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// routerDeps are the components the HTTP surface is built from
type routerDeps struct {
	Sessions       *conversation.Manager
	Runner         handlers.TurnRunner
	Catalog        []tools.Descriptor
	Health         *handlers.HealthChecker
	Redis          *redis.Client
	FrontendURL    string
	RateLimit      string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Tracing        bool
	Logger         *zap.Logger
}

// newRouter builds the router. Middleware registered first runs outermost.
func newRouter(deps routerDeps) (*mux.Router, error) {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = middleware.DefaultMaxRequestSize
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = middleware.DefaultRequestTimeout
	}

	r := mux.NewRouter()
	if deps.Tracing {
		r.Use(otelmux.Middleware(telemetry.ServiceName))
	}
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(deps.FrontendURL))
	r.Use(middleware.MaxRequestSize(deps.MaxBodyBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(deps.RequestTimeout))

	// health checks are not rate limited
	deps.Health.RegisterRoutes(r)

	rateLimitMW, err := middleware.RateLimit(deps.RateLimit, deps.Redis)
	if err != nil {
		return nil, err
	}
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitMW)
	handlers.NewSessionHandler(deps.Sessions, deps.Runner, deps.Logger).RegisterRoutes(apiRouter)
	handlers.NewToolsHandler(deps.Catalog).RegisterRoutes(apiRouter)

	// preflight requests are answered by the CORS middleware
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r, nil
}
