package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/batch-allocation/internal/adapter/handler"
	"github.com/rl1809/batch-allocation/internal/adapter/notification"
	"github.com/rl1809/batch-allocation/internal/adapter/storage"
	"github.com/rl1809/batch-allocation/internal/config"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/platform/observability"
	"github.com/rl1809/batch-allocation/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, config.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// Initialize database
	dialect := storage.Dialect(cfg.DBDriver)
	db, err := storage.Open(ctx, dialect, cfg.DSN())
	if err != nil {
		return err
	}
	schema, err := storage.StartSchema(ctx, db, dialect)
	if err != nil {
		db.Close()
		return err
	}
	store := storage.NewSQLStore(db, schema)
	logger.Info("connected to database", zap.String("driver", cfg.DBDriver))

	handlers := &service.Handlers{
		Notifier: notification.NewLogNotifier(logger),
		Logger:   logger,
	}
	var view port.AllocationsView = service.NewRepositoryView(store)

	// Initialize Redis when configured
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			closeAll(logger, db, rdb)
			return err
		}
		redisAdapter := storage.NewRedisAdapter(rdb)
		handlers.Publisher = redisAdapter
		handlers.ReadModel = redisAdapter
		view = redisAdapter
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	bus, err := handlers.NewBus(store)
	if err != nil {
		closeAll(logger, db, rdb)
		return err
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	handler.RegisterAllocationServer(grpcServer, handler.NewGRPCHandler(bus, view, logger))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewHTTPHandler(bus, view, logger).Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		logger.Info("HTTP server stopped")
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		return err
	})

	err = g.Wait()
	closeAll(logger, db, rdb)
	return err
}

func closeAll(logger *zap.Logger, db *sql.DB, rdb *redis.Client) {
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	logger.Info("connections closed")
}
