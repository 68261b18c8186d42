package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/pricewatch/internal/catalog"
	"github.com/xenking/pricewatch/internal/gateway"
	"github.com/xenking/pricewatch/internal/handler"
	"github.com/xenking/pricewatch/internal/querycache"
	"github.com/xenking/pricewatch/internal/seed"
	"github.com/xenking/pricewatch/pkg/health"
	"github.com/xenking/pricewatch/pkg/httpmiddleware"
)

// Services are the long-lived components shared by the API server and the
// seed command.
type Services struct {
	Gateway *gateway.Client
	Cache   *querycache.Cache
	Catalog *catalog.Client
	Seeder  *seed.Seeder
}

// NewServices builds the remote store client, the process-wide query cache
// and the components on top of them.
func NewServices(lg *zap.Logger, m *app.Telemetry, cfg *Config) (*Services, error) {
	gwCfg := cfg.Gateway()
	gwCfg.TracerProvider = m.TracerProvider()
	gwCfg.MeterProvider = m.MeterProvider()
	gw, err := gateway.NewClient(gwCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create gateway client")
	}

	cache, err := querycache.New(querycache.Options{
		Logger:        lg.Named("cache"),
		MeterProvider: m.MeterProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create query cache")
	}

	cat := catalog.New(gw, cache, cfg.Catalog(), lg.Named("catalog"))
	seeder := seed.New(gw, cat, seed.Options{
		Logger:         lg.Named("seed"),
		TracerProvider: m.TracerProvider(),
	})
	return &Services{Gateway: gw, Cache: cache, Catalog: cat, Seeder: seeder}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the API server.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("remote", cfg.Remote.URL),
	)

	svc, err := NewServices(lg, m, cfg)
	if err != nil {
		return err
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("remote-store", 5*time.Second, health.PingCheck(svc.Gateway))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.New(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		Dataset:      cfg.Seed.Dataset,
	}, svc.Catalog, svc.Seeder)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	api := otelhttp.NewHandler(mux, "pricewatch-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Seeding the full catalog runs inside one request.
		WriteTimeout:   2 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(api,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				RPS:     cfg.RateLimit.RPS,
				Burst:   cfg.RateLimit.Burst,
				IdleTTL: cfg.RateLimit.IdleTTL,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
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

// Seed runs the seeding protocol once against the remote store.
func Seed(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	svc, err := NewServices(lg, m, cfg)
	if err != nil {
		return err
	}

	samples, err := seed.LoadDataset(cfg.Seed.Dataset)
	if err != nil {
		return errors.Wrap(err, "load dataset")
	}
	lg.Info("Seeding remote store",
		zap.String("remote", cfg.Remote.URL),
		zap.Int("products", len(samples)),
	)

	res, err := svc.Seeder.Run(ctx, samples)
	if err != nil {
		lg.Error("Seeding stopped, partial data left in store",
			zap.Int("products_created", len(res.Products)),
			zap.Int("prices_added", res.Prices),
		)
		return err
	}
	return nil
}
