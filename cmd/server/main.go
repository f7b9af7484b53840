package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/gstk-backend/internal/adapter/grpc"
	"github.com/simaogato/gstk-backend/internal/adapter/httpapi"
	"github.com/simaogato/gstk-backend/internal/adapter/network"
	"github.com/simaogato/gstk-backend/internal/adapter/repository/memory"
	"github.com/simaogato/gstk-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/gstk-backend/internal/adapter/repository/rediscache"
	"github.com/simaogato/gstk-backend/internal/app"
	"github.com/simaogato/gstk-backend/internal/domain"
	"github.com/simaogato/gstk-backend/internal/observability"
	"github.com/simaogato/gstk-backend/internal/usecase/assetcache"
	"github.com/simaogato/gstk-backend/internal/usecase/calculator"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	// 1. Setup cache storage
	storage, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	// 2. Install and activate the asset cache
	cacheCfg, err := cfg.CacheConfig()
	if err != nil {
		return err
	}
	fetcher := network.NewFetcher(nil)
	interceptor, err := assetcache.NewInterceptor(cacheCfg, storage, fetcher, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create asset interceptor: %w", err)
	}
	defer interceptor.Wait()

	if err := interceptor.Install(ctx); err != nil {
		return fmt.Errorf("failed to install asset cache: %w", err)
	}
	report, err := interceptor.Activate(ctx)
	if err != nil {
		return fmt.Errorf("failed to activate asset cache: %w", err)
	}
	logger.Info("asset cache active",
		slog.String("store", cacheCfg.StoreName()),
		slog.Any("deleted", report.Deleted),
		slog.Int("failed", len(report.Failed)),
	)

	// 3. Initialize services
	calculatorService := calculator.NewCalculatorService(cfg.Locale(), metrics)

	// 4. HTTP server
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.RouterParams{
			Logger:       logger,
			Metrics:      metrics,
			TaxHandler:   httpapi.NewTaxHandler(calculatorService, logger),
			AssetHandler: httpapi.NewAssetHandler(interceptor, fetcher, cacheCfg.Origin, logger),
			Production:   cfg.IsProduction(),
			RateLimit:    cfg.APIRateLimit,
		}),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// 5. gRPC server
	healthServer := health.NewServer()
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(cfg.APIToken, healthpb.Health_Check_FullMethodName),
		),
	)
	grpcadapter.RegisterTaxServiceServer(grpcServer, grpcadapter.NewServer(calculatorService))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server listening", slog.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}

// openStorage connects the configured cache backend
func openStorage(ctx context.Context, cfg *app.Config, logger *slog.Logger) (domain.CacheStorage, func(), error) {
	switch cfg.CacheBackend {
	case app.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("using redis cache storage", slog.String("addr", cfg.RedisAddr))
		return rediscache.NewCacheStorage(client, cfg.RedisNamespace), func() { _ = client.Close() }, nil

	case app.BackendPostgres:
		db, err := postgres.NewDB(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("using postgres cache storage")
		return postgres.NewCacheStorage(db), func() { _ = db.Close() }, nil

	default:
		logger.Info("using in-memory cache storage")
		return memory.NewCacheStorage(), func() {}, nil
	}
}
