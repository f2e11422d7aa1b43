package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	slogctx "github.com/veqryn/slog-context"
	"google.golang.org/grpc"

	"github.com/rl1809/velocity/internal/adapter/handler"
	"github.com/rl1809/velocity/internal/adapter/storage"
	"github.com/rl1809/velocity/internal/config"
	"github.com/rl1809/velocity/internal/core/service"
	"github.com/rl1809/velocity/internal/interceptor"
	"github.com/rl1809/velocity/internal/logging"
	"github.com/rl1809/velocity/internal/port"
)

func main() {
	cfg, err := config.Load(config.New(os.Getenv("APP_ENV"), "."))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	ctx := slogctx.NewCtx(context.Background(), logger)

	if err := run(ctx, cfg); err != nil {
		slogctx.Error(ctx, "server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	queueSize := 0
	if cfg.Mirror.Enabled() {
		queueSize = cfg.Mirror.QueueSize
	}
	ledger := service.NewOwnerLedger(queueSize)

	// Initialize mirror
	mirror, closeMirror, err := openMirror(ctx, cfg.Mirror)
	if err != nil {
		return err
	}
	defer closeMirror()

	var wg sync.WaitGroup
	if mirror != nil {
		loadCtx, cancel := context.WithTimeout(ctx, cfg.Mirror.Timeout)
		changes, err := mirror.LoadOwners(loadCtx)
		cancel()
		if err != nil {
			return err
		}

		restored, err := ledger.Restore(ctx, changes)
		if err != nil {
			return err
		}
		slogctx.Info(ctx, "restored owners from mirror", "backend", cfg.Mirror.Backend, "owners", restored)

		replicator := service.NewReplicator(mirror, cfg.Mirror.WorkerCount, cfg.Mirror.Timeout)
		wg.Add(1)
		go func() {
			defer wg.Done()
			replicator.Run(ctx, ledger.Changes())
		}()
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptor.UnaryLogger,
		interceptor.NewRecover().UnaryInterceptor,
	))
	handler.RegisterOwnerServiceServer(grpcServer, handler.NewGRPCHandler(ledger))

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return oops.In("server").With("address", cfg.Server.GRPCAddr).Wrapf(err, "listen")
	}

	go func() {
		slogctx.Info(ctx, "gRPC server listening", "address", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			slogctx.Error(ctx, "gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.NewHTTPHandler(ledger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slogctx.Info(ctx, "HTTP server listening", "address", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogctx.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slogctx.Warn(ctx, "HTTP server shutdown", "error", err)
	}
	slogctx.Info(ctx, "HTTP server stopped")

	grpcServer.GracefulStop()
	slogctx.Info(ctx, "gRPC server stopped")

	// Close the change feed and wait for the replicator to drain it
	ledger.Close()
	wg.Wait()
	slogctx.Info(ctx, "replicator drained")

	return nil
}

// openMirror connects the configured mirror backend. It returns a nil mirror
// when mirroring is disabled.
func openMirror(ctx context.Context, cfg config.MirrorConfig) (port.OwnerMirror, func(), error) {
	switch cfg.Backend {
	case config.MirrorMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, oops.In("mysql").Wrapf(err, "open connection")
		}
		db.SetMaxOpenConns(cfg.WorkerCount * 2)
		db.SetMaxIdleConns(cfg.WorkerCount)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, oops.In("mysql").Wrapf(err, "ping")
		}
		slogctx.Info(ctx, "connected to mysql")

		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return adapter, func() { db.Close() }, nil

	case config.MirrorRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: cfg.WorkerCount * 2,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, oops.In("redis").With("addr", cfg.RedisAddr).Wrapf(err, "ping")
		}
		slogctx.Info(ctx, "connected to redis")

		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil

	default:
		return nil, func() {}, nil
	}
}
