package main

import (
	"context"
	"errors"
	"hotel-search-go/config"
	"hotel-search-go/logcolors"
	"hotel-search-go/stats"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	maintenanceInterval = 5 * time.Minute
	shutdownTimeout     = 15 * time.Second
)

func init() {
	log.SetOutput(os.Stdout)
	configureLogging(config.Get())
}

// configureLogging applies LOG_FORMAT and LOG_LEVEL. Unknown levels fall back to info.
func configureLogging(cfg config.Config) {
	if cfg.Configuration.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}

	level, err := log.ParseLevel(cfg.Configuration.LogLevel)
	if err != nil {
		log.Warnf("%s Unknown log level %q, using info", logcolors.LogConfig, cfg.Configuration.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	cfg := config.Get()

	statsStore, err := stats.NewStore(cfg.Configuration.StatsDBPath, stats.Get())
	if err != nil {
		log.Warnf("%s Stats persistence disabled: %v", logcolors.LogStats, err)
	} else {
		if err := statsStore.Load(); err != nil {
			log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
		}
		statsStore.StartAutoSave(time.Duration(cfg.Configuration.StatsSaveIntervalInSecs) * time.Second)
	}

	srv, err := newServer(cfg, serverOptions{Stats: stats.Get()})
	if err != nil {
		log.Fatalf("%s Failed to start: %v", logcolors.LogServer, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.startMaintenance(ctx, maintenanceInterval)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Configuration.Port,
		Handler:           srv.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("%s Server listening on port %s", logcolors.LogServer, cfg.Configuration.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s Server failed: %v", logcolors.LogServer, err)
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}

	srv.close()
	if statsStore != nil {
		if err := statsStore.Close(); err != nil {
			log.Warnf("%s Failed to close stats store: %v", logcolors.LogStats, err)
		}
	}
}
