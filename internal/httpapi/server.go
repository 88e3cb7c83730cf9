// Package httpapi exposes the planner and the shopping list over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weekly-planner/internal/planner"
	"weekly-planner/internal/shopping"
)

// Randomizer proposes recipes for a household.
type Randomizer interface {
	Randomize(ctx context.Context, req planner.RandomizeRequest) (*planner.RandomizeResult, error)
}

// ShoppingService runs the shopping list operations.
type ShoppingService interface {
	List(ctx context.Context, scope shopping.Scope) (*shopping.List, error)
	Append(ctx context.Context, req shopping.AppendRequest) (int64, error)
	Move(ctx context.Context, req shopping.MoveRequest) (*shopping.MoveResult, error)
	Delete(ctx context.Context, req shopping.DeleteRequest) error
	SetPurchased(ctx context.Context, req shopping.PurchaseRequest) error
}

// HealthChecker reports whether the store can serve requests.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Planner      Randomizer
	Shopping     ShoppingService
	Auth         *Authenticator
	Health       HealthChecker
	DefaultCount int
	// Registry receives the HTTP metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
}

// Server routes HTTP requests to the core operations.
type Server struct {
	planner      Randomizer
	shopping     ShoppingService
	auth         *Authenticator
	health       HealthChecker
	defaultCount int
	registry     *prometheus.Registry
	metrics      *httpMetrics
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	count := opts.DefaultCount
	if count <= 0 {
		count = planner.DefaultCount
	}
	return &Server{
		planner:      opts.Planner,
		shopping:     opts.Shopping,
		auth:         opts.Auth,
		health:       opts.Health,
		defaultCount: count,
		registry:     reg,
		metrics:      newHTTPMetrics(reg),
	}
}

// Handler returns the root handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /health", http.HandlerFunc(s.handleHealth), false)

	s.handle(mux, "GET /api/recipes/random", http.HandlerFunc(s.handleRandomize), true)
	s.handle(mux, "GET /api/shopping/{year}/{week}", http.HandlerFunc(s.handleList), true)
	s.handle(mux, "POST /api/shopping/items", http.HandlerFunc(s.handleAppend), true)
	s.handle(mux, "POST /api/shopping/items/move", http.HandlerFunc(s.handleMove), true)
	s.handle(mux, "PATCH /api/shopping/items/{id}", http.HandlerFunc(s.handleSetPurchased), true)
	s.handle(mux, "DELETE /api/shopping/items/{id}", http.HandlerFunc(s.handleDelete), true)

	return withRequestID(withRecover(logRequests(mux)))
}

// MetricsHandler serves the registry in the Prometheus exposition format. It is
// meant for a separate, non-public listener.
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler, authenticated bool) {
	if authenticated {
		h = s.auth.Middleware(h)
	}
	mux.Handle(pattern, s.metrics.instrument(pattern, h))
}
