package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/loadmap/api/internal/config"
	"github.com/loadmap/api/internal/database"
	"github.com/loadmap/api/internal/enum"
	"github.com/loadmap/api/internal/handler"
	mw "github.com/loadmap/api/internal/middleware"
	"github.com/loadmap/api/internal/service"
	"github.com/loadmap/api/internal/ws"
	"github.com/sirupsen/logrus"
)

// New creates a Chi router with all application routes wired up.
// Every storage backend reaches the handlers through store; hub may be nil
// when live events are disabled.
func New(cfg *config.Config, store database.Store, hub *ws.Hub, log logrus.FieldLogger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Services
	audit := service.NewAuditService(store, log)
	catalog := service.NewCatalogService(store, audit)
	orders := service.NewOrderService(store, audit)
	lifecycle := service.NewLifecycleService(store, audit, log, cfg.TruckCapacityKg)
	reports := service.NewReportService(store)

	var notifier handler.Notifier
	if hub != nil {
		notifier = hub
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(store, cfg.JWTSecret, log)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	if hub != nil {
		r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(hub, cfg.JWTSecret, w, r)
		})
	}

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Order entry and the catalog it depends on
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireModule(enum.ModuleOrders))

			productHandler := handler.NewProductHandler(catalog, log)
			r.Route("/products", productHandler.RegisterRoutes)

			orderHandler := handler.NewOrderHandler(orders, notifier, log)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})

		// Load building, delivery and the ledger
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireModule(enum.ModuleLoads))

			loadHandler := handler.NewLoadHandler(lifecycle, notifier, log)
			loadHandler.RegisterRoutes(r)

			reportHandler := handler.NewReportHandler(reports, log)
			reportHandler.RegisterRoutes(r)
		})

		// Users and the audit trail
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireModule(enum.ModuleLogs))

			auditHandler := handler.NewAuditHandler(audit, log)
			auditHandler.RegisterRoutes(r)

			userHandler := handler.NewUserHandler(store, audit, log)
			r.Route("/users", userHandler.RegisterRoutes)
		})
	})

	log.Debug("router initialized")
	return r
}
