package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"aeria-sms/api"
	"aeria-sms/config"
	"aeria-sms/core/capas"
	"aeria-sms/core/incidents"
	"aeria-sms/core/safety"
	"aeria-sms/core/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("AERIA_CONFIG"), "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.AppConfig, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.DBDriver, logger); err != nil {
		return err
	}

	incidentsStore := store.NewIncidentsStore(db)
	capasStore := store.NewCAPAsStore(db)
	audits := store.NewAuditStore(db)
	snapshots := store.NewSnapshotsStore(db)

	incidentsSvc := incidents.NewService(cfg, incidentsStore, audits, logger)
	capasSvc := capas.NewService(cfg, capasStore, audits, logger)
	engine := safety.NewEngine(cfg, incidentsStore, capasStore, snapshots, logger)
	scheduler := safety.NewScheduler(cfg.Scheduler, cfg.Safety.SnapshotSpec, engine, logger)

	server := api.NewServer(cfg, api.ServerDeps{
		Audits:       audits,
		IncidentsSvc: incidentsSvc,
		CAPAsSvc:     capasSvc,
		SafetyEngine: engine,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTPTimeout,
		WriteTimeout:      cfg.HTTPTimeout,
	}

	workers := []api.BackgroundWorker{scheduler}
	for _, w := range workers {
		w.StartWithContext(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, w := range workers {
		if err := w.StopWithContext(shutdownCtx); err != nil {
			logger.WithError(err).Warn("worker stop")
		}
	}
	return httpServer.Shutdown(shutdownCtx)
}
