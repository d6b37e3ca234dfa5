package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/demo-rest/internal/access"
	"github.com/DeafMist/demo-rest/internal/config"
	"github.com/DeafMist/demo-rest/internal/files"
	"github.com/DeafMist/demo-rest/internal/logger"
	"github.com/DeafMist/demo-rest/internal/metrics"
	"github.com/DeafMist/demo-rest/internal/rest"
	"github.com/DeafMist/demo-rest/internal/store/backend"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(ctx, 15*time.Second)
	st, err := backend.Open(openCtx, cfg.Common, log)
	cancelOpen()
	if err != nil {
		log.Error("open content store", slog.Any("err", err))
		os.Exit(1)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	endpoint := rest.NewArticleListEndpoint(
		access.NewChecker(cfg.AnonymousPermissions),
		st,
		files.NewPublicStream(cfg.PublicFilesPath),
		rest.WithLogger(log),
		rest.WithMetrics(metrics.New(reg)),
		rest.WithQueryTimeout(cfg.QueryTimeout),
	)

	handler := rest.NewRouter(rest.RouterConfig{
		Articles:       endpoint,
		Health:         st,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Authenticate:   access.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, log).Middleware,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            log,
	})

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("store", cfg.StoreDriver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
