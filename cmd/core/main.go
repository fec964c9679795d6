package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-mem-point/internal/app/core/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/go-mem-point/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-mem-point/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-mem-point/internal/app/core/config"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-point/pkg/logger"
	"github.com/JoeShih716/go-mem-point/pkg/mysql"
	pb "github.com/JoeShih716/go-mem-point/pkg/pointrpc"
	"github.com/JoeShih716/go-mem-point/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New("info", nil)
		bootLog.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	log := logger.New(cfg.Log.Level, nil)

	// 2. 初始化儲存與 Ledger
	ledger, closeStorage, err := buildLedger(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to init storage")
	}
	defer closeStorage()

	// 3. 初始化 gRPC Adapter (Driving Adapter)
	grpcServer := grpc_adapter.NewGrpcServer(ledger)

	// 4. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Server.Addr).Msg("Failed to listen")
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.LoggingInterceptor(log)))
	pb.RegisterPointServiceServer(s, grpcServer)
	if cfg.Server.Reflection {
		reflection.Register(s)
	}

	// Graceful Shutdown
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting gRPC server")
		if err := s.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	s.GracefulStop()
	log.Info().Msg("Server exited")
}

// buildLedger 依 storage.driver 建立 PointLedger，回傳關閉儲存的函式
func buildLedger(cfg config.Config, log zerolog.Logger) (*usecase.PointLedger, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("host", cfg.MySQL.Host).Msg("Connected to MySQL successfully")

		repo := mysql_adapter.NewPointRepository(dbClient)
		if cfg.Storage.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := repo.AutoMigrate(ctx); err != nil {
				_ = dbClient.Close()
				return nil, nil, err
			}
		}
		closeFn := func() {
			if err := dbClient.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close MySQL")
			}
		}
		return usecase.NewPointLedger(repo, repo, usecase.WithTransactor(repo)), closeFn, nil

	default:
		var walFile *wal.WAL
		if cfg.Storage.WALPath != "" {
			var walOpts []wal.Option
			if cfg.Storage.WALNoSync {
				walOpts = append(walOpts, wal.WithoutSync())
			}
			var err error
			walFile, err = wal.NewWAL(cfg.Storage.WALPath, walOpts...)
			if err != nil {
				return nil, nil, err
			}
		}
		store, history, err := memory_adapter.Open(walFile)
		if err != nil {
			if walFile != nil {
				_ = walFile.Close()
			}
			return nil, nil, err
		}
		log.Info().Int("users", store.Len()).Str("wal", cfg.Storage.WALPath).Msg("Recovered memory storage")
		if walFile != nil && walFile.TornBytes() > 0 {
			log.Warn().Int64("bytes", walFile.TornBytes()).Msg("Discarded torn WAL tail")
		}

		closeFn := func() {
			if walFile == nil {
				return
			}
			if err := walFile.Sync(); err != nil {
				log.Error().Err(err).Msg("Failed to sync WAL")
			}
			if err := walFile.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close WAL")
			}
		}
		return usecase.NewPointLedger(store, history, usecase.WithTransactor(store)), closeFn, nil
	}
}
