package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shop-coupons/db"
	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/internal/domain/checkout"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
	"github.com/xenking/shop-coupons/internal/fixture"
	"github.com/xenking/shop-coupons/internal/handler"
	"github.com/xenking/shop-coupons/internal/storage/cache"
	"github.com/xenking/shop-coupons/internal/storage/memory"
	"github.com/xenking/shop-coupons/internal/storage/postgres"
	"github.com/xenking/shop-coupons/pkg/health"
	"github.com/xenking/shop-coupons/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStorage(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// Health check service.
	healthSvc := health.New(lg.Named("health"))
	healthSvc.Register(health.Readiness, cfg.Storage, 5*time.Second, health.PingCheck(st.pinger))
	healthSvc.Register(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	shops := cache.NewShopRepository(st.shops, cfg.ShopCacheTTL)
	validator := coupon.NewValidator(st.coupons, st.mods, loc)
	applier, err := coupon.NewApplier(validator, st.mods, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create applier")
	}
	checkoutService := checkout.NewService(st.orders, shops, st.coupons, validator, applier)
	manager := coupon.NewManager(st.coupons, shops)

	// Rate limiters.
	limiter := httpmiddleware.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	go limiter.RunCleanup(ctx)
	var couponLimiter *httpmiddleware.Limiter
	if cfg.CouponRateLimit.Max > 0 {
		couponLimiter = httpmiddleware.NewLimiter(cfg.CouponRateLimit.Max, cfg.CouponRateLimit.Window)
		go couponLimiter.RunCleanup(ctx)
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			APIKeyPepper:  cfg.APIKeyPepper,
			CouponLimiter: couponLimiter,
		},
		checkoutService,
		manager,
		st.apikeys,
	)

	router := h.Router()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newServerHandler(ctx, router, m.TracerProvider(), m.MeterProvider(), cfg, limiter),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newServerHandler(
	ctx context.Context,
	router chi.Router,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	limiter *httpmiddleware.Limiter,
) http.Handler {
	return httpmiddleware.Wrap(router,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader},
			ExposeHeaders:    []string{"X-Request-ID", "Location"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		limiter.Middleware(httpmiddleware.ClientIP),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("shop-coupons", tp, mp),
		httpmiddleware.Route(),
		httpmiddleware.LogRequests(),
	)
}

// storage is the set of repositories backing the services.
type storage struct {
	shops   shop.Repository
	coupons coupon.Repository
	mods    coupon.ModificationRepository
	orders  order.Repository
	apikeys auth.Repository
	pinger  health.Pinger
	close   func()
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config) (*storage, error) {
	switch cfg.Storage {
	case StoragePostgres:
		return openPostgres(ctx, cfg)
	case StorageMemory:
		return openMemory(lg, cfg)
	default:
		return nil, errors.Errorf("unknown storage %q", cfg.Storage)
	}
}

func openPostgres(ctx context.Context, cfg *Config) (*storage, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &storage{
		shops:   postgres.NewShopRepository(pool),
		coupons: postgres.NewCouponRepository(pool),
		mods:    postgres.NewModificationRepository(pool),
		orders:  postgres.NewOrderRepository(pool),
		apikeys: postgres.NewAPIKeyRepository(pool),
		pinger:  pool,
		close:   pool.Close,
	}, nil
}

// openMemory builds an in-process store loaded with the embedded fixtures.
func openMemory(lg *zap.Logger, cfg *Config) (*storage, error) {
	store := memory.NewStore()
	set, err := fixture.ParseBytes(db.Fixtures, time.Now())
	if err != nil {
		return nil, errors.Wrap(err, "parse fixtures")
	}
	if err := set.Load(store); err != nil {
		return nil, errors.Wrap(err, "load fixtures")
	}
	if cfg.SeedAPIKey != "" {
		if err := store.AddAPIKey(auth.APIKeyInfo{
			ID:      uuid.NewString(),
			Name:    "seed",
			KeyHash: auth.HashKey([]byte(cfg.APIKeyPepper), cfg.SeedAPIKey),
			Scopes:  []string{auth.ScopeEditCoupons},
		}); err != nil {
			return nil, errors.Wrap(err, "add seed api key")
		}
	}
	lg.Warn("Using in-memory storage, data is lost on restart",
		zap.Int("coupons", len(set.Coupons)),
		zap.Int("orders", len(set.Orders)),
	)
	return &storage{
		shops:   store.Shops(),
		coupons: store.Coupons(),
		mods:    store.Modifications(),
		orders:  store.Orders(),
		apikeys: store.APIKeys(),
		pinger:  store,
		close:   func() {},
	}, nil
}
