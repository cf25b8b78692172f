package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perfusionpro/perfusion-api/config"
	"github.com/perfusionpro/perfusion-api/data"
	"github.com/perfusionpro/perfusion-api/directory"
	"github.com/perfusionpro/perfusion-api/handlers"
	"github.com/perfusionpro/perfusion-api/interfaces"
	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/registry"
	"github.com/perfusionpro/perfusion-api/scheduler"
	"github.com/perfusionpro/perfusion-api/server"
	"github.com/perfusionpro/perfusion-api/validation"
)

func main() {
	// Read the env variables; fall back to the executable directory so a
	// systemd unit with a different working directory still finds .env
	if err := godotenv.Load(); err != nil {
		if ex, exErr := os.Executable(); exErr == nil {
			if chErr := os.Chdir(filepath.Dir(ex)); chErr == nil {
				godotenv.Load()
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger("logs")

	// Hospital directory pipeline
	container := data.NewDirectoryContainer()
	loader := directory.NewLoader(cfg.AllowedRegions)
	source := hospitalSource(cfg)

	sched := scheduler.NewScheduler(container, loader, source)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start directory scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Case and medication stores; the ledger handles cascade deletes
	ledger := registry.NewMedicationLedger()
	cases := registry.NewCaseStore(cfg.OrgCode, ledger)

	validator := validation.NewInputValidator()
	handler := handlers.NewHTTPHandler(cases, ledger, container, validator)
	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
		os.Exit(1)
	}
}

// hospitalSource picks the directory source: a local file wins over the
// download URL, and with neither configured the loader never runs a
// refresh successfully, leaving the seed dataset in place.
func hospitalSource(cfg *config.Config) interfaces.HospitalSource {
	if cfg.HospitalDataFile != "" {
		return directory.FileSource{Path: cfg.HospitalDataFile}
	}
	return directory.URLSource{URL: cfg.HospitalDataURL}
}
