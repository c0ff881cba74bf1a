// Package app wires stores, services and transports of the store manager.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storemanager/internal/config"
	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/internal/store"
	"github.com/abgdnv/storemanager/internal/transport/rest"
	"github.com/abgdnv/storemanager/migrations"
	"github.com/abgdnv/storemanager/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/storemanager/pkg/config"
	"github.com/abgdnv/storemanager/pkg/messaging"
	"github.com/abgdnv/storemanager/pkg/server"
	"github.com/abgdnv/storemanager/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

type Dependencies struct {
	ProductService service.ProductService
	SaleService    service.SaleService
	Logger         *slog.Logger
}

// Stores groups the product and sale stores of one backend.
type Stores struct {
	Products store.ProductStore
	Sales    store.SaleStore
}

// HttpOptions controls the optional parts of the HTTP handler.
type HttpOptions struct {
	// MetricsPath exposes Prometheus metrics when not empty.
	MetricsPath string
	// Registry receives the HTTP collectors and is served on MetricsPath.
	// prometheus.DefaultRegisterer and DefaultGatherer are used when nil.
	Registry *prometheus.Registry
	// Tracing wraps the router with otelhttp.
	Tracing bool
}

// SetupDependencies builds the services on top of the given stores.
// Product and sale operations share one set of product locks.
func SetupDependencies(stores Stores, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	locks := service.NewProductLocks()
	return &Dependencies{
		ProductService: service.NewService(stores.Products, locks),
		SaleService:    service.NewSaleWorkflow(stores.Products, stores.Sales, locks, publisher),
		Logger:         logger,
	}
}

// OpenStores connects to the configured backend, applies migrations when asked to, and
// returns its stores with a function releasing the connection.
func OpenStores(ctx context.Context, cfg pkgconfig.DatabaseConfig) (Stores, func(), error) {
	switch cfg.Driver {
	case pkgconfig.DriverMemory:
		db := store.NewMemoryDB()
		return Stores{Products: store.NewInMemoryProductStore(db), Sales: store.NewInMemorySaleStore(db)}, func() {}, nil

	case pkgconfig.DriverMySQL:
		db, err := bootstrap.NewMySQLDB(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return Stores{}, nil, err
		}
		if cfg.Migrate {
			if err := migrations.Up(cfg.Driver, cfg.URL); err != nil {
				_ = db.Close()
				return Stores{}, nil, err
			}
		}
		return Stores{Products: store.NewMySQLProductStore(db), Sales: store.NewMySQLSaleStore(db)}, func() { _ = db.Close() }, nil

	case pkgconfig.DriverPostgres:
		pool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return Stores{}, nil, err
		}
		if cfg.Migrate {
			if err := migrations.Up(cfg.Driver, cfg.URL); err != nil {
				pool.Close()
				return Stores{}, nil, err
			}
		}
		return Stores{Products: store.NewPgProductStore(pool), Sales: store.NewPgSaleStore(pool)}, pool.Close, nil

	default:
		return Stores{}, nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// SetupHttpHandler initializes the router with all routes and middleware.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies, opts HttpOptions) http.Handler {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		reg, gatherer = opts.Registry, opts.Registry
	}

	var mux *chi.Mux
	if opts.MetricsPath != "" {
		mux = server.NewChiRouter(deps.Logger, web.NewHTTPMetrics(reg).Middleware)
		mux.Handle(opts.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	} else {
		mux = server.NewChiRouter(deps.Logger)
	}
	wireRoutes(mux, deps)

	if opts.Tracing {
		return otelhttp.NewHandler(mux, "storemanager")
	}
	return mux
}

// wireRoutes sets up the HTTP routes of the store manager.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	mux.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rest.NewProductHandler(deps.ProductService, deps.Logger).RegisterRoutes(mux)
	rest.NewSaleHandler(deps.SaleService, deps.Logger).RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the store manager.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	opts := HttpOptions{Tracing: cfg.Telemetry.Enabled}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}
	mux := SetupHttpHandler(deps, opts)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

// SetupGrpcServer initializes the gRPC server exposing the standard health service.
func SetupGrpcServer(healthServer *health.Server, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(reflectionEnabled, server.WithHealth(healthServer))
}
