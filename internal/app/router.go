package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/case-supplier/case-supplier/internal/delivery"
	"github.com/case-supplier/case-supplier/internal/orders"
	"github.com/case-supplier/case-supplier/internal/simulation"
	"github.com/case-supplier/case-supplier/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	OrderHandler      *orders.Handler
	LogisticsHandler  *delivery.Handler
	SimulationHandler *simulation.Handler
	StockHandler      *stock.Handler
}

// NewRouter constructs the chi.Router serving the supplier API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.OrderHandler.MountRoutes(r)
		params.LogisticsHandler.MountRoutes(r)
		params.SimulationHandler.MountRoutes(r)
		params.StockHandler.MountRoutes(r)
	})

	return r
}
