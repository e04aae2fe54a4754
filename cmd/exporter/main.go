package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/config"
	"github.com/alvmarrod/tree-exporter/internal/exporter"
	"github.com/alvmarrod/tree-exporter/internal/metrics"
	"github.com/alvmarrod/tree-exporter/internal/source"
	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/alvmarrod/tree-exporter/internal/tree"
	"github.com/alvmarrod/tree-exporter/internal/version"
	"github.com/sirupsen/logrus"
)

const usage = `usage: exporter [-config path] <command>

commands:
  start      discard any previous export and start from the root
  resume     continue a paused export
  run        continue a running export after a restart
  pause      pause the export, keeping its checkpoint
  stop       stop the export and delete its checkpoint
  summarize  rebuild the summary of a completed export
`

func main() {
	configPath := flag.String("config", "config.json", "path to a JSON or YAML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	// Configure logging
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logrus.Infof("Tree Exporter v%s starting...", version.Version)

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logrus.SetLevel(cfg.Level())

	logrus.Infof("Configuration loaded: job=%s, source=%s, root=%s, batch_limit=%d",
		cfg.JobName, cfg.Source, cfg.Root, cfg.BatchLimit)

	// Initialize storage
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	logrus.Infof("Database initialized: %s", cfg.DBPath)

	states, closeStates, err := openStateStore(cfg, store)
	if err != nil {
		logrus.Fatalf("Failed to initialize checkpoint store: %v", err)
	}
	defer closeStates()

	src, rootID, err := openSource(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize source: %v", err)
	}

	// Initialize metrics tracker
	tracker := metrics.NewTracker()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, tracker)
	}

	sched := exporter.NewTimerScheduler()
	defer sched.Stop()

	job := &exporter.Job{
		Name:      cfg.JobName,
		RootID:    rootID,
		Source:    src,
		Sink:      store.Report(cfg.JobName),
		Store:     states,
		Scheduler: sched,
		Limits: exporter.Limits{
			BatchLimit:      cfg.BatchLimit,
			ReservedMargin:  cfg.ReservedMargin,
			Deadline:        cfg.Deadline(),
			RescheduleDelay: cfg.RescheduleDelay(),
		},
		Metrics: tracker,
		Log:     logrus.WithField("job", cfg.JobName),
	}
	runner := exporter.NewRunner(job)
	controller := exporter.NewController(job, runner)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "start":
		if _, err := controller.Start(ctx); err != nil {
			logrus.Errorf("Start failed: %v", err)
		}
	case "resume":
		if _, err := controller.Resume(ctx); err != nil {
			logrus.Fatalf("Resume failed: %v", err)
		}
	case "run":
		status, err := job.Status(ctx)
		if err != nil {
			logrus.Fatalf("Failed to read job status: %v", err)
		}
		if status != storage.StatusRunning {
			logrus.Infof("Nothing to run: job status is %q", status)
			return
		}
		if err := sched.ScheduleAfter(job.Name, 0); err != nil {
			logrus.Fatalf("Failed to schedule batch: %v", err)
		}
	case "pause":
		if err := controller.Pause(ctx); err != nil {
			logrus.Fatalf("Pause failed: %v", err)
		}
		return
	case "stop":
		if err := controller.Stop(ctx); err != nil {
			logrus.Fatalf("Stop failed: %v", err)
		}
		return
	case "summarize":
		lines, err := controller.Summarize(ctx)
		if err != nil {
			logrus.Fatalf("Summary failed: %v", err)
		}
		for _, line := range lines {
			fmt.Printf("%-18s %d\n", line.Label, line.Count)
		}
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	// Start progress logger
	stopProgress := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	terminationReason := drive(ctx, runner, sched, job)
	close(stopProgress)

	logrus.Info("Final stats: " + tracker.LogProgress())

	// Write metrics to file
	if err := tracker.WriteToFile(cfg.MetricsPath, terminationReason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	logrus.Info("Shutdown complete. Goodbye!")
}

// drive consumes wake-ups until the export settles and names the reason
func drive(ctx context.Context, runner *exporter.Runner, sched *exporter.TimerScheduler, job *exporter.Job) string {
	err := runner.Drive(ctx, sched)

	var corrupt *exporter.CheckpointCorruptError
	switch {
	case errors.Is(err, context.Canceled):
		logrus.Info("Interrupted, the checkpoint is kept; continue with \"run\"")
		return "signal"
	case errors.As(err, &corrupt):
		logrus.Errorf("Checkpoint is corrupt, restart with \"start\": %v", err)
		return "checkpoint_corrupt"
	case err != nil:
		logrus.Errorf("Export loop failed: %v", err)
		return "error"
	}

	status, err := job.Status(context.Background())
	if err != nil {
		logrus.Errorf("Failed to read final status: %v", err)
		return "error"
	}
	switch status {
	case storage.StatusAbsent:
		// Completion and stop both delete the checkpoint
		return "queue_empty"
	default:
		return string(status)
	}
}

func openStateStore(cfg *config.Config, store *storage.Storage) (exporter.StateStore, func(), error) {
	if cfg.StateBackend == config.BackendLevelDB {
		db, err := storage.OpenLevelDB(cfg.LevelDBPath)
		if err != nil {
			return nil, nil, err
		}
		logrus.Infof("Checkpoints kept in leveldb: %s", cfg.LevelDBPath)
		return db.States(cfg.JobName), func() { db.Close() }, nil
	}
	return store.States(cfg.JobName), func() {}, nil
}

func openSource(cfg *config.Config) (tree.Source, string, error) {
	filter, err := source.NewFilter(cfg.Exclude)
	if err != nil {
		return nil, "", err
	}

	if cfg.Source == config.SourceHTTP {
		s, err := source.NewHTTPIndex(cfg.Root, cfg.RequestTimeout(), filter)
		if err != nil {
			return nil, "", err
		}
		return s, s.RootID(), nil
	}

	s, err := source.NewFS(cfg.Root, filter)
	if err != nil {
		return nil, "", err
	}
	return s, s.RootID(), nil
}

func serveMetrics(addr string, tracker *metrics.Tracker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", tracker.Handler())
	logrus.Infof("Serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.Errorf("Metrics server failed: %v", err)
	}
}
