package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shoppos/pos-backend/api/controllers"
	"github.com/shoppos/pos-backend/api/middleware"
	"github.com/shoppos/pos-backend/internal/auth"
	"github.com/shoppos/pos-backend/internal/items"
	"github.com/shoppos/pos-backend/internal/locations"
	"github.com/shoppos/pos-backend/internal/offers"
	"github.com/shoppos/pos-backend/internal/reports"
	"github.com/shoppos/pos-backend/internal/sales"
	"github.com/shoppos/pos-backend/internal/settings"
	"github.com/shoppos/pos-backend/internal/users"
	"github.com/shoppos/pos-backend/pkg/auth/session"
	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/enums"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
	"github.com/shoppos/pos-backend/pkg/redis"
)

// Dependencies bundles everything the router hands to middleware and controllers.
// Redis may be nil, which disables rate limiting and idempotent replay.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	Auth      auth.Service
	Register  auth.RegisterService
	Users     users.Service
	Items     items.Service
	Sales     sales.Service
	Offers    offers.Service
	Locations locations.Service
	Settings  settings.Service
	Reports   reports.Service
}

func passthrough(next http.Handler) http.Handler { return next }

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	loginLimit := passthrough
	idempotency := passthrough
	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		loginLimit = middleware.LoginRateLimit(middleware.LoginLimits{
			Window:   cfg.AuthRateLimit.LoginWindow,
			PerIP:    cfg.AuthRateLimit.LoginIPLimit,
			PerEmail: cfg.AuthRateLimit.LoginEmailLimit,
		}, deps.Redis, logg)
		idempotency = middleware.Idempotency(deps.Redis, logg)
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticate := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	cashier := middleware.RequireRole(logg, enums.RoleCashier)
	admin := middleware.RequireRole(logg, enums.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			if !cfg.App.IsProd() {
				r.Post("/register", controllers.AuthRegister(deps.Register, logg))
			}
			r.With(authenticate).Get("/me", controllers.AuthMe())
			r.With(authenticate).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(idempotency)

			r.Route("/items", func(r chi.Router) {
				r.With(cashier).Get("/", controllers.ItemList(deps.Items, logg))
				r.With(cashier).Get("/{id}", controllers.ItemDetail(deps.Items, logg))
				r.With(admin).Post("/", controllers.ItemCreate(deps.Items, logg))
				r.With(admin).Put("/{id}", controllers.ItemUpdate(deps.Items, logg))
				r.With(admin).Delete("/{id}", controllers.ItemDelete(deps.Items, logg))
			})

			r.Route("/sales", func(r chi.Router) {
				r.Use(cashier)
				r.Post("/", controllers.SaleCreate(deps.Sales, logg))
				r.Get("/", controllers.SaleList(deps.Sales, logg))
				r.Get("/{id}", controllers.SaleDetail(deps.Sales, logg))
			})

			r.Route("/offers", func(r chi.Router) {
				r.With(cashier).Post("/", controllers.OfferCreate(deps.Offers, logg))
				r.With(admin).Get("/", controllers.OfferList(deps.Offers, logg))
				r.With(admin).Put("/{id}", controllers.OfferDecide(deps.Offers, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", controllers.UserList(deps.Users, logg))
				r.Post("/", controllers.UserCreate(deps.Users, logg))
				r.Put("/{id}", controllers.UserUpdate(deps.Users, logg))
				r.Delete("/{id}", controllers.UserDelete(deps.Users, logg))
			})

			r.Route("/locations", func(r chi.Router) {
				r.With(cashier).Get("/", controllers.LocationList(deps.Locations, logg))
				r.With(cashier).Get("/{id}", controllers.LocationDetail(deps.Locations, logg))
				r.With(admin).Post("/", controllers.LocationCreate(deps.Locations, logg))
				r.With(admin).Put("/{id}", controllers.LocationRename(deps.Locations, logg))
				r.With(admin).Delete("/{id}", controllers.LocationDelete(deps.Locations, logg))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", controllers.SettingsGet(deps.Settings, logg))
				r.Put("/", controllers.SettingsUpdate(deps.Settings, logg))
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(admin)
				r.Get("/dashboard", controllers.ReportDashboard(deps.Reports, logg))
				r.Get("/sales", controllers.ReportSales(deps.Reports, logg))
				r.Get("/top-products", controllers.ReportTopProducts(deps.Reports, logg))
				r.Get("/cashier-performance", controllers.ReportCashierPerformance(deps.Reports, logg))
				r.Get("/export-csv", controllers.ReportExportCSV(deps.Reports, logg))
			})
		})
	})

	return r
}
