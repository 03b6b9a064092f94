package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/audit"
	"github.com/sophiesociety/hub-sync/internal/cache"
	"github.com/sophiesociety/hub-sync/internal/config"
	"github.com/sophiesociety/hub-sync/internal/connector"
	"github.com/sophiesociety/hub-sync/internal/database"
	"github.com/sophiesociety/hub-sync/internal/lineage"
	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/reconcile"
	"github.com/sophiesociety/hub-sync/internal/repository"
	"github.com/sophiesociety/hub-sync/internal/schedule"
	"github.com/sophiesociety/hub-sync/internal/secrets"
	"github.com/sophiesociety/hub-sync/internal/server"
	"github.com/sophiesociety/hub-sync/internal/settings"
	hubsync "github.com/sophiesociety/hub-sync/internal/sync"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("application error")
	}
}

func run(log *logrus.Logger) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Run migrations before opening the pooled connection
	log.Info("running database migrations")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Info("database connected")

	// Initialize repositories
	configCache := cache.New(time.Duration(cfg.ConfigCacheTTL)*time.Second, time.Now)
	mappingRepo := repository.NewMappingRepository(db, configCache)
	syncRunRepo := repository.NewSyncRunRepository(db)
	entityRepo := repository.NewEntityRepository(db)
	weeklyRepo := repository.NewWeeklyStatusRepository(db)
	lineageRepo := repository.NewLineageRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Settings resolve DB-stored values first, env vars second
	settingsChain := settings.NewChain(settings.NewDBProvider(settingRepo), settings.EnvProvider{})

	cipher, err := loadCipher(settingsChain, cfg, log)
	if err != nil {
		return err
	}

	// Connectors
	connectors := connector.NewRegistry()
	connectors.Register(models.SourceTypeGoogleSheet, connector.NewGoogleSheets())
	connectors.Register(models.SourceTypeWorkbook, connector.NewWorkbook())

	auditLog := audit.NewLogger(auditRepo, log)
	tracker := lineage.NewTracker(lineageRepo)

	deps := hubsync.Deps{
		Configs:    mappingRepo,
		Runs:       syncRunRepo,
		Entities:   entityRepo,
		Weekly:     weeklyRepo,
		Lineage:    tracker,
		Connectors: connectors,
		Audit:      auditLog,
		Log:        log,
	}
	// A typed nil in the interface would defeat the engine's nil check.
	if cipher != nil {
		deps.Secrets = cipher
	}
	engine := hubsync.New(deps)

	reconciler := reconcile.New(entityRepo, auditLog, log)
	scheduler := schedule.New(cfg, reconciler, syncRunRepo, log)

	srv := server.New(engine, reconciler, syncRunRepo, cfg.CronToken, log)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)
	go func() {
		errChan <- scheduler.Start(ctx)
	}()
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http server shutdown failed")
		}

		select {
		case <-shutdownCtx.Done():
			log.Warn("shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				log.WithError(err).Warn("scheduler error during shutdown")
			}
		}

		log.Info("application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}

// loadCipher resolves the encryption key (DB setting first, env second)
// and builds the credential cipher. A missing key is tolerated: syncs
// against sources without stored credentials still work.
func loadCipher(chain *settings.Chain, cfg *config.Config, log *logrus.Logger) (*secrets.Cipher, error) {
	keyHex, ok, err := chain.Get(context.Background(), "ENCRYPTION_KEY")
	if err != nil {
		return nil, err
	}
	if !ok || keyHex == "" {
		keyHex = cfg.EncryptionKey
	}
	if keyHex == "" {
		log.Warn("no encryption key configured, sources with stored credentials will fail to sync")
		return nil, nil
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}
	return secrets.NewCipher(key)
}
