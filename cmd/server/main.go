package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arup-group/genet-sub002/pkg/config"
	"github.com/arup-group/genet-sub002/pkg/kv"
	"github.com/arup-group/genet-sub002/pkg/network"
	"github.com/arup-group/genet-sub002/pkg/server/rest"
	"github.com/arup-group/genet-sub002/pkg/server/rest/service"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var (
	configPath = flag.String("config", "config.yaml", "path of the yaml configuration file")
	listenAddr = flag.String("listenaddr", "", "server listen address, defaults to :<server.port> from the config")
	debug      = flag.Bool("debug", false, "development logging")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", *configPath, err)
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.Server.StorePath).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Server.StorePath, err)
	}
	kvDB := kv.NewKVDB(db, kv.WithLogger(logger))
	defer kvDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	net, err := kvDB.LoadNetwork(ctx, network.WithLogger(logger))
	switch {
	case errors.Is(err, kv.ErrSnapshotNotFound):
		logger.Info("no network snapshot, starting with an empty network", zap.String("crs", cfg.CRS))
		net, err = network.New(network.WithCRS(cfg.CRS), network.WithLogger(logger))
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load network snapshot: %w", err)
	default:
		logger.Info("network snapshot loaded",
			zap.String("crs", net.CRS()),
			zap.Int("nodes", net.NumberOfNodes()),
			zap.Int("links", net.NumberOfLinks()))
		if net.CRS() != cfg.CRS {
			logger.Warn("snapshot crs differs from configured crs, using the snapshot's",
				zap.String("snapshot", net.CRS()), zap.String("configured", cfg.CRS))
		}
	}

	reg := prometheus.NewRegistry()
	m := rest.NewMetrics(reg)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rest.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	networkSvc := service.NewNetworkService(net, kvDB, logger)
	rest.NetworkRouter(r, networkSvc, m, cfg.Catchment.Defaults())

	addr := *listenAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	srv := &http.Server{Addr: addr, Handler: r}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
