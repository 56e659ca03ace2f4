package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/duckmesh/duckchat/internal/config"
	"github.com/duckmesh/duckchat/internal/demo/transactions"
	s3store "github.com/duckmesh/duckchat/internal/storage/s3"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := transactions.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load demo data config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := []transactions.Sink{transactions.DirSink{Dir: cfg.OutputDir}}
	if cfg.Upload {
		appCfg, err := config.LoadFromEnv("duckchat-demo-data")
		if err != nil {
			logger.Error("failed to load object store config", slog.Any("error", err))
			os.Exit(1)
		}
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         appCfg.ObjectStore.Endpoint,
			Region:           appCfg.ObjectStore.Region,
			Bucket:           appCfg.ObjectStore.Bucket,
			AccessKeyID:      appCfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  appCfg.ObjectStore.SecretAccessKey,
			UseSSL:           appCfg.ObjectStore.UseSSL,
			Prefix:           appCfg.ObjectStore.Prefix,
			AutoCreateBucket: appCfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		sinks = append(sinks, transactions.ObjectSink{Store: store, Prefix: cfg.UploadPrefix})
	}

	summary, err := transactions.Write(ctx, cfg, logger, sinks...)
	if err != nil {
		logger.Error("failed to write demo data", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo data written",
		slog.Int("rows", summary.Rows),
		slog.Int64("seed", cfg.Seed),
		slog.Any("locations", summary.Locations),
	)
}
