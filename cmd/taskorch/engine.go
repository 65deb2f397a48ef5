package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/taskorch/internal/config"
	"github.com/ShayCichocki/taskorch/internal/orchestrator"
	"github.com/ShayCichocki/taskorch/internal/state"
)

// engine bundles an orchestrator with the resources it was built from.
type engine struct {
	orch    *orchestrator.Orchestrator
	archive *state.DB
	logger  *orchestrator.DebugLogger

	// eventsDone is closed once followEvents has consumed every event.
	eventsDone <-chan struct{}
}

// newEngine builds an orchestrator from cfg. The caller must Close it.
func newEngine(cfg *config.Config, w io.Writer) (*engine, error) {
	registry, _, err := createRegistry(cfg, w)
	if err != nil {
		return nil, err
	}

	logger, err := openDebugLogger(cfg.Debug.LogDir, debugMode)
	if err != nil {
		return nil, err
	}
	e := &engine{logger: logger}

	opts := []orchestrator.Option{
		orchestrator.WithConfig(cfg.SystemConfig()),
		orchestrator.WithTickInterval(cfg.Orchestrator.TickInterval),
		orchestrator.WithWaitPollInterval(cfg.Orchestrator.WaitPollInterval),
		orchestrator.WithDefaultWaitTimeout(cfg.Orchestrator.DefaultWaitTimeout),
		orchestrator.WithMetricsWindow(cfg.Orchestrator.MetricsWindow),
		orchestrator.WithHistoryLimit(cfg.Orchestrator.HistoryLimit),
		orchestrator.WithEventBuffer(cfg.Orchestrator.EventBuffer),
		orchestrator.WithLogger(e.logger),
	}

	if cfg.Archive.Enabled {
		db, err := openArchive(cfg)
		if err != nil {
			e.logger.Close()
			return nil, err
		}
		e.archive = db
		opts = append(opts, orchestrator.WithArchive(db))
	}

	orch, err := orchestrator.New(registry, opts...)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	e.orch = orch
	return e, nil
}

// openDebugLogger opens the debug log in logDir. With debug set and no
// logDir the log goes under the working directory; otherwise nothing is
// logged.
func openDebugLogger(logDir string, debug bool) (*orchestrator.DebugLogger, error) {
	switch {
	case logDir != "":
		return orchestrator.NewDebugLogger(filepath.Join(logDir, "orchestrator-debug.log"))
	case debug:
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		return orchestrator.NewDebugLoggerForDir(wd), nil
	default:
		return orchestrator.NopLogger(), nil
	}
}

// followEvents copies orchestrator events to the debug log. Commands
// without the monitor call it so the event buffer never fills.
func (e *engine) followEvents() {
	e.eventsDone = logEvents(e.orch, e.logger)
}

// logEvents consumes events until Stop closes the channel. The returned
// channel is closed when the last event has been logged.
func logEvents(orch *orchestrator.Orchestrator, logger *orchestrator.DebugLogger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range orch.Events() {
			if ev.TaskID == "" {
				logger.Log("[event] %s %s", ev.Type, ev.Message)
				continue
			}
			logger.Log("[event] %s task=%s %s/%s", ev.Type, ev.TaskID, ev.Agent, ev.Action)
		}
	}()
	return done
}

// openArchive opens and migrates the configured archive.
func openArchive(cfg *config.Config) (*state.DB, error) {
	db, err := state.OpenWithDriver(cfg.Archive.Driver, cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return db, nil
}

// Close stops the orchestrator and releases the archive and log.
func (e *engine) Close() {
	if e.orch != nil {
		e.orch.Stop()
	}
	if e.eventsDone != nil {
		<-e.eventsDone
	}
	if e.archive != nil {
		e.archive.Close()
	}
	e.logger.Close()
}
