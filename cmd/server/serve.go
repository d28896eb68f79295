package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/grocery-inventory/internal/adapter/handler"
	"github.com/rl1809/grocery-inventory/internal/adapter/storage"
	"github.com/rl1809/grocery-inventory/internal/config"
	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/service"
	"github.com/rl1809/grocery-inventory/internal/core/store"
	"github.com/rl1809/grocery-inventory/internal/metrics"
	"github.com/rl1809/grocery-inventory/internal/port"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	layout, err := config.LoadLayout(cfg.Shop.LayoutFile)
	if err != nil {
		return err
	}
	shop := store.New[domain.Product]()
	if err := shop.Initialize(layout); err != nil {
		return fmt.Errorf("build shelves: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize Redis
	var cache port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rdb.Close()
		cache = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize MySQL
	var db *storage.MySQLAdapter
	if cfg.MySQL.DSN != "" {
		sqlDB, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect mysql: %w", err)
		}
		defer sqlDB.Close()
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping mysql: %w", err)
		}
		db = storage.NewMySQLAdapter(sqlDB)
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("connected to mysql")
	}

	queueSize := 0
	if db != nil {
		queueSize = cfg.Journal.QueueSize
	}
	shopService := service.NewShopService(shop, cache, queueSize,
		service.WithLogger(logger),
		service.WithMetrics(m),
	)

	if cfg.Shop.RestoreSnapshot {
		placements, err := db.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		skipped := shopService.Restore(ctx, placements)
		logger.Info("snapshot restored", zap.Int("placements", len(placements)), zap.Int("skipped", skipped))
	}

	// Start journal workers
	journal := &sync.WaitGroup{}
	if db != nil {
		journal = service.StartJournal(cfg.Journal.Workers, shopService.GetJournalQueue(), db, logger, m)
		logger.Info("started journal workers", zap.Int("workers", cfg.Journal.Workers))
	}

	errCh := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.LoggingInterceptor(logger)))
		handler.RegisterShopServer(grpcServer, handler.NewGRPCHandler(shopService))

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		router := mux.NewRouter()
		handler.NewHTTPHandler(shopService, logger).RegisterRoutes(router)
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")

		httpServer = &http.Server{
			Addr:         cfg.Server.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server: %w", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down")
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown", zap.Error(err))
		}
		logger.Info("HTTP server stopped")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	// Close journal queue and wait for workers
	shopService.Close()
	journal.Wait()
	logger.Info("journal workers stopped")

	if db != nil {
		if err := db.SaveSnapshot(shutdownCtx, shopService.Placements()); err != nil {
			logger.Error("failed to save snapshot", zap.Error(err))
		} else {
			logger.Info("snapshot saved")
		}
	}

	return runErr
}
