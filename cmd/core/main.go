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

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/in/grpc"
	rest_adapter "github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-ledger-service/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
	"github.com/JoeShih716/go-ledger-service/pkg/mysql"
	"github.com/JoeShih716/go-ledger-service/pkg/wal"
)

func main() {
	// 1. 載入設定
	cfg, err := loadConfig(configPath())
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	// 2. 初始化儲存層 (Driven Adapter)
	gateway, closeGateway, err := newGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeGateway()

	// 3. 初始化 UseCase (整個行程只有一個 Ledger Facade)
	core := usecase.NewCoreUseCase(gateway, usecase.WithLockStripes(cfg.Ledger.LockStripes))

	// 4. 初始化 gRPC Server (Driving Adapter)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpc_adapter.RecoveryInterceptor(log),
		grpc_adapter.LoggingInterceptor(log),
	))
	grpc_adapter.RegisterLedgerServer(s, grpc_adapter.NewGrpcServer(core))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpc_adapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	reflection.Register(s) // 方便 grpcurl / Postman 測試

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting grpc server", slog.String("addr", cfg.Server.GRPCAddr), slog.String("store", cfg.Ledger.Store))
		if err := s.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// 5. REST (選用)
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           rest_adapter.NewRouter(core, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("starting http server", slog.String("addr", cfg.Server.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http serve: %w", err)
			}
		}()
	}

	// Wait for interrupt
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down server...")
	case serveErr = <-errCh:
	}

	// Graceful Shutdown
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", slog.Any("error", err))
		}
	}
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn("graceful stop timed out, forcing")
		s.Stop()
	}
	return serveErr
}

// newGateway 依設定建立儲存層，回傳關閉函式
func newGateway(ctx context.Context, cfg Config, log *slog.Logger) (usecase.Gateway, func(), error) {
	switch cfg.Ledger.Store {
	case StoreMySQL:
		dbClient, err := mysql.NewClient(ctx, cfg.MySQL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		gateway := mysql_adapter.NewGateway(dbClient)
		if cfg.MySQL.AutoMigrate {
			if err := gateway.Migrate(ctx); err != nil {
				_ = dbClient.Close()
				return nil, nil, err
			}
			log.Info("mysql schema migrated")
		}
		return gateway, func() {
			if err := dbClient.Close(); err != nil {
				log.Warn("close mysql", slog.Any("error", err))
			}
		}, nil

	default:
		var walFile *wal.WAL
		if cfg.Ledger.WALPath != "" {
			var err error
			if walFile, err = wal.NewWAL(cfg.Ledger.WALPath); err != nil {
				return nil, nil, fmt.Errorf("failed to init wal: %w", err)
			}
		}
		store, err := memory_adapter.NewStore(walFile)
		if err != nil {
			if walFile != nil {
				_ = walFile.Close()
			}
			return nil, nil, fmt.Errorf("failed to recover memory store: %w", err)
		}
		log.Info("memory store ready", slog.String("wal", cfg.Ledger.WALPath))
		return store, func() {
			if walFile == nil {
				return
			}
			if err := walFile.Close(); err != nil {
				log.Warn("close wal", slog.Any("error", err))
			}
		}, nil
	}
}
