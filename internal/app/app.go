package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-console/internal/catalog"
	"github.com/xenking/catalog-console/internal/web"
	"github.com/xenking/catalog-console/pkg/health"
	"github.com/xenking/catalog-console/pkg/httpmiddleware"
)

const serviceName = "catalog-console"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Duration("upstream_timeout", cfg.Upstream.Timeout),
	)

	// Remote catalog and its snapshot.
	client, err := catalog.NewClient(catalog.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.Upstream.Timeout,
		ListLimit: cfg.Upstream.ListLimit,
	}, catalog.NewSnapshot(),
		catalog.WithTracerProvider(m.TracerProvider()),
		catalog.WithMeterProvider(m.MeterProvider()),
		catalog.WithLogger(lg.Named("catalog")),
	)
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}

	// Health check service.
	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck("catalog", cfg.Health.Timeout, health.PingCheck("catalog", client))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, cfg.Health.Interval)
	healthSvc.SetReady(true)

	// Console pages.
	if cfg.Session.Key == "" {
		lg.Warn("Session key is not set, pending notifications are lost on restart")
	}
	flash, err := web.NewFlashStore(web.FlashConfig{
		Name:   cfg.Session.Name,
		Key:    []byte(cfg.Session.Key),
		Secure: cfg.Session.Secure,
	})
	if err != nil {
		return errors.Wrap(err, "create flash store")
	}
	h, err := web.NewHandler(client, flash)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// The list page stays open while the catalog is fetched.
		WriteTimeout:   max(30*time.Second, 2*cfg.Upstream.Timeout),
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				Methods: []string{http.MethodPost},
				OnLimit: http.HandlerFunc(h.Throttled),
			}),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer healthSvc.Stop()

		// Graceful shutdown: stop advertising readiness, drain, then stop.
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
