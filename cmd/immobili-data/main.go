package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"immobili-data/internal/config"
	"immobili-data/internal/database"
	httpapi "immobili-data/internal/http"
	"immobili-data/internal/logger"
	"immobili-data/internal/repository"
	"immobili-data/internal/service"
	"immobili-data/internal/storage"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "immobili-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var db *sql.DB
	var repo repository.PropertiesRepo

	switch cfg.StoreMode {
	case config.StoreModeRemote:
		repo = repository.NewRemotePropertiesRepo(cfg.Remote.URL, cfg.Remote.APIKey)
		log.Info("Using remote record store", zap.String("url", cfg.Remote.URL))
	default:
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			pg := repository.NewPostgresPropertiesRepo(d)
			if err := pg.EnsureSchema(context.Background()); err != nil {
				log.Fatal("Failed to ensure schema", zap.Error(err))
			}
			db = d
			repo = pg
			log.Info("Using local PostgreSQL record store",
				zap.String("host", cfg.Database.Host),
				zap.String("dbname", cfg.Database.Database))
		} else {
			// DB not reachable: fall back to the in-memory repo so the
			// service still comes up for development and testing.
			log.Warn("Database connection failed, falling back to in-memory store", zap.Error(err))
			repo = repository.NewMemoryPropertiesRepo()
		}
	}

	var backend storage.ObjectBackend
	var local *storage.LocalBackend
	if cfg.Storage.Mode == config.StoreModeRemote {
		backend = storage.NewSupabaseBackend(cfg.Remote.URL, cfg.Remote.APIKey)
		log.Info("Using remote document buckets", zap.String("url", cfg.Remote.URL))
	} else {
		local = storage.NewLocalBackend(cfg.Storage.BaseDir)
		backend = local
		log.Info("Using local document buckets", zap.String("base_dir", cfg.Storage.BaseDir))
	}
	docs := storage.NewDocumentStore(backend, repo, cfg.Storage.ImagesBucket, cfg.Storage.ContractsBucket, log)

	properties := httpapi.NewPropertiesHandler(repo, cfg.ExpiryWarningDays, log)
	documents := httpapi.NewDocumentsHandler(docs, cfg.Storage, log)
	excel := httpapi.NewExcelHandler(repo, log)

	router := httpapi.NewRouter(log)
	router.RegisterPropertyRoutes(properties, documents, excel)
	if local != nil {
		router.HandleHandler("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(local.FilesRoot()))))
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	// fresh context: Shutdown still needs its drain window here
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if db != nil {
		database.Close(db)
	}
}
