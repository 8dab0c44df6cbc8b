package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nipopow/nipowd/infrastructure/config"
	"github.com/nipopow/nipowd/infrastructure/db/database"
	"github.com/nipopow/nipowd/infrastructure/db/database/ldb"
	"github.com/nipopow/nipowd/infrastructure/logger"
	"github.com/nipopow/nipowd/infrastructure/os/execenv"
	"github.com/nipopow/nipowd/infrastructure/os/signal"
	"github.com/nipopow/nipowd/util/panics"
	"github.com/nipopow/nipowd/util/profiling"
	"github.com/nipopow/nipowd/version"
)

const databaseDirectoryName = "database"

type nipowdApp struct {
	cfg *config.Config
}

// StartApp starts the nipowd app, and blocks until it finishes running
func StartApp() error {
	execenv.Initialize()

	// Load configuration and parse command line.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	logger.InitLog(cfg.LogFile(), cfg.ErrLogFile())
	defer logger.BackendLog.Close()
	defer panics.HandlePanic(log, "MAIN", nil)

	app := &nipowdApp{cfg: cfg}
	return app.main(nil)
}

func (app *nipowdApp) main(startedChan chan<- struct{}) error {
	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem.
	interrupt := signal.InterruptListener()
	defer log.Info("Shutdown complete")

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if app.cfg.Profile != "" {
		profiling.Start(app.cfg.Profile, log)
	}

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	// Open the database
	db, err := openDB(app.cfg)
	if err != nil {
		log.Errorf("Loading database failed: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down the database...")
		err := db.Close()
		if err != nil {
			log.Errorf("Failed to close the database: %s", err)
		}
	}()

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	// Create componentManager and start it.
	componentManager, err := NewComponentManager(app.cfg, db)
	if err != nil {
		log.Errorf("Unable to start nipowd: %+v", err)
		return err
	}

	defer func() {
		log.Infof("Gracefully shutting down nipowd...")

		shutdownDone := make(chan struct{})
		go func() {
			componentManager.Stop()
			shutdownDone <- struct{}{}
		}()

		const shutdownTimeout = 2 * time.Minute

		select {
		case <-shutdownDone:
		case <-time.After(shutdownTimeout):
			log.Criticalf("Graceful shutdown timed out %s. Terminating...", shutdownTimeout)
		}
		log.Infof("nipowd shutdown complete")
	}()

	componentManager.Start()

	if startedChan != nil {
		startedChan <- struct{}{}
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems.
	<-interrupt
	return nil
}

// databasePath returns the path to the block database given a database type.
func databasePath(cfg *config.Config) string {
	return filepath.Join(cfg.AppDir, databaseDirectoryName)
}

func openDB(cfg *config.Config) (database.Database, error) {
	dbPath := databasePath(cfg)

	err := os.MkdirAll(dbPath, 0700)
	if err != nil {
		return nil, err
	}

	versionFileExisted, err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loading database from '%s'", dbPath)
	db, err := ldb.NewLevelDB(dbPath, cfg.DatabaseCacheMiB)
	if err != nil {
		return nil, err
	}

	if !versionFileExisted {
		err := createDatabaseVersionFile(dbPath)
		if err != nil {
			return nil, err
		}
	}

	return db, nil
}
