package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duckmesh/duckchat/internal/api"
	"github.com/duckmesh/duckchat/internal/auth"
	"github.com/duckmesh/duckchat/internal/chat"
	"github.com/duckmesh/duckchat/internal/config"
	"github.com/duckmesh/duckchat/internal/dataset"
	"github.com/duckmesh/duckchat/internal/llm"
	"github.com/duckmesh/duckchat/internal/observability"
	"github.com/duckmesh/duckchat/internal/prompt"
	"github.com/duckmesh/duckchat/internal/query"
	duckdbengine "github.com/duckmesh/duckchat/internal/query/duckdb"
	"github.com/duckmesh/duckchat/internal/session"
	sessionmemory "github.com/duckmesh/duckchat/internal/session/memory"
	sessionpostgres "github.com/duckmesh/duckchat/internal/session/postgres"
	"github.com/duckmesh/duckchat/internal/storage"
	"github.com/duckmesh/duckchat/internal/storage/memory"
	s3store "github.com/duckmesh/duckchat/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("duckchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	objectStore, err := openObjectStore(startCtx, cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	var source dataset.Source = dataset.LocalSource{}
	if cfg.Dataset.Source == config.DatasetSourceObjectStore {
		source = dataset.ObjectSource{Store: objectStore}
	}
	ds, schema, err := dataset.Load(startCtx, source, cfg.Dataset.Name, cfg.Dataset.DataPath, cfg.Dataset.DictionaryPath)
	if err != nil {
		logger.Error("failed to load dataset", slog.Any("error", err))
		os.Exit(1)
	}
	snapshot, err := dataset.Publish(startCtx, objectStore, ds)
	if err != nil {
		logger.Error("failed to publish dataset snapshot", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset loaded",
		slog.String("dataset", ds.Name),
		slog.Int("rows", ds.RowCount()),
		slog.Int("columns", len(ds.Columns)),
		slog.String("snapshot", snapshot.ObjectKey),
	)
	if cfg.Dataset.PruneSnapshots {
		pruned, err := dataset.PruneSnapshots(startCtx, objectStore, snapshot)
		if err != nil {
			logger.Warn("failed to prune dataset snapshots", slog.Any("error", err))
		} else if len(pruned) > 0 {
			logger.Info("pruned dataset snapshots", slog.Int("count", len(pruned)))
		}
	}

	model, err := llm.New(startCtx, cfg.AI, logger)
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	sessions, sessionDB, err := openSessionStore(startCtx, cfg)
	if err != nil {
		logger.Error("failed to open session store", slog.Any("error", err))
		os.Exit(1)
	}
	if sessionDB != nil {
		defer func() { _ = sessionDB.Close() }()
	}

	datasetContext := dataset.BuildContext(ds, schema, cfg.Dataset.SampleRows)
	service, err := chat.NewService(sessions, model, duckdbengine.NewEngine(objectStore), chat.Config{
		Context: datasetContext,
		Tables: []query.TableFile{{
			TableName:     snapshot.Dataset,
			ObjectPath:    snapshot.ObjectKey,
			FileSizeBytes: snapshot.SizeBytes,
			Columns:       snapshot.Columns,
		}},
		Composer: prompt.Composer{
			DatasetName:     ds.Name,
			ScopeGuard:      cfg.Chat.ScopeGuard,
			MaxHistoryTurns: cfg.Chat.MaxHistoryTurns,
		},
		RowLimit:       cfg.Sandbox.RowLimit,
		SandboxTimeout: cfg.Sandbox.Timeout,
		SummaryRows:    cfg.Chat.SummaryRows,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize chat service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:   logger,
		Sessions: sessions,
		Chat:     service,
		Dataset:  api.NewDatasetInfo(ds, schema, datasetContext, snapshot),
		Readiness: api.CombineReadinessChecks(
			api.CheckSessionStore(sessions),
			api.CheckSnapshot(objectStore, snapshot.ObjectKey),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Error("auth is required but DUCKCHAT_AUTH_STATIC_KEYS is empty")
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("provider", cfg.AI.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// openObjectStore returns the configured bucket, or an in-process store
// holding only the dataset snapshot.
func openObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if !cfg.ObjectStore.Enabled {
		return memory.New(), nil
	}
	return s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
}

func openSessionStore(ctx context.Context, cfg config.Config) (session.Store, *sql.DB, error) {
	switch cfg.Sessions.Store {
	case "memory":
		return sessionmemory.New(), nil, nil
	case "postgres":
		db, err := sessionpostgres.Open(ctx, sessionpostgres.DBConfig{
			DSN:             cfg.Sessions.DSN,
			MaxOpenConns:    cfg.Sessions.MaxOpenConns,
			MaxIdleConns:    cfg.Sessions.MaxIdleConns,
			ConnMaxIdleTime: cfg.Sessions.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Sessions.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return sessionpostgres.NewStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store %q", cfg.Sessions.Store)
	}
}
