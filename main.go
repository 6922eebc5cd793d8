/*
Package main
File: main.go
Description: Command entry point. Loads the world file, wires the event-log
sinks, then either prints the count table for a fixed number of steps or
serves an animated live view over HTTP and WebSocket.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/everforgeworks/outbreak/internal/api"
	"github.com/everforgeworks/outbreak/internal/eventlog"
	"github.com/everforgeworks/outbreak/internal/metrics"
	"github.com/everforgeworks/outbreak/internal/sim"
	"github.com/everforgeworks/outbreak/internal/world"
)

type options struct {
	configPath string
	steps      int
	seed       int64
	batch      int
	logPath    string
	sqlitePath string
	postgres   string
	archive    bool
	serve      string
	interval   time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "world.yaml", "world file (YAML)")
	flag.IntVar(&opts.steps, "steps", 100, "steps to simulate, 0 runs until interrupted (with -serve, until nobody is infected)")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed, overrides the world file when non-zero")
	flag.IntVar(&opts.batch, "batch", 0, "agents per batch, overrides the world file when positive")
	flag.StringVar(&opts.logPath, "log", "log.dat", "transition log file, empty to disable")
	flag.StringVar(&opts.sqlitePath, "sqlite", "", "also log transitions to this SQLite database")
	flag.StringVar(&opts.postgres, "postgres", os.Getenv("OUTBREAK_POSTGRES_DSN"), "also log transitions to this Postgres DSN")
	flag.BoolVar(&opts.archive, "archive", false, "upload the -log file to S3 at the end of the run (OUTBREAK_S3_* env)")
	flag.StringVar(&opts.serve, "serve", "", "serve the live view on this address, e.g. :8081")
	flag.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "time between animated steps")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("OUTBREAK: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadWorld(opts)
	if err != nil {
		return err
	}
	pop, err := world.NewPopulation(cfg, nil)
	if err != nil {
		return err
	}

	sinks, err := openSinks(ctx, opts)
	if err != nil {
		return err
	}

	if opts.serve != "" {
		return serve(ctx, opts, pop, sinks)
	}

	s := sim.New(pop, sim.Options{BatchSize: opts.batch, Log: eventlog.Tee(sinks...)})
	defer func() { _ = s.Close() }()
	log.Printf("OUTBREAK: %d agents, batch size %d, %d steps", pop.Len(), s.BatchSize(), opts.steps)

	out := os.Stdout
	if err := sim.WriteReportHeader(out); err != nil {
		return err
	}
	if err := sim.WriteReportRow(out, s.Snapshot()); err != nil {
		return err
	}
	var werr error
	err = s.Run(ctx, opts.steps, func(snap world.Snapshot) bool {
		werr = sim.WriteReportRow(out, snap)
		return werr == nil
	})
	if err == nil {
		err = werr
	}
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return sim.WriteReportRule(out)
}

// loadWorld reads the world file. A missing default file falls back to the
// built-in defaults; a missing explicit file is an error.
func loadWorld(opts options) (world.Config, error) {
	cfg, err := world.LoadConfig(opts.configPath)
	if errors.Is(err, fs.ErrNotExist) && !flagSet("config") {
		log.Printf("CONFIG: %s not found, using defaults", opts.configPath)
		cfg, err = world.DefaultConfig(), nil
	}
	if err != nil {
		return world.Config{}, fmt.Errorf("load world: %w", err)
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	if opts.batch > 0 {
		cfg.BatchSize = opts.batch
	}
	return cfg, cfg.Validate()
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// openSinks opens every requested event-log destination. On failure the
// sinks opened so far are finalized.
func openSinks(ctx context.Context, opts options) (sinks []eventlog.Sink, err error) {
	defer func() {
		if err != nil {
			_ = eventlog.Tee(sinks...).Finalize()
			sinks = nil
		}
	}()

	if opts.logPath != "" {
		file, err := eventlog.OpenFile(opts.logPath)
		if err != nil {
			return sinks, err
		}
		if !opts.archive {
			sinks = append(sinks, file)
		} else {
			cfg, err := eventlog.ArchiveConfigFromEnv()
			if err == nil {
				var a *eventlog.Archive
				if a, err = eventlog.NewArchive(ctx, cfg, file); err == nil {
					sinks = append(sinks, a)
					log.Printf("ARCHIVE: log will be uploaded to s3://%s/%s", cfg.Bucket, a.Key())
				}
			}
			if err != nil {
				_ = file.Finalize()
				return sinks, err
			}
		}
	} else if opts.archive {
		return sinks, errors.New("-archive needs -log")
	}

	if opts.sqlitePath != "" {
		db, err := eventlog.OpenSQLite(ctx, opts.sqlitePath, "")
		if err != nil {
			return sinks, err
		}
		log.Printf("SQLITE: run %s -> %s", db.Run(), opts.sqlitePath)
		sinks = append(sinks, db)
	}
	if opts.postgres != "" {
		db, err := eventlog.OpenPostgres(ctx, opts.postgres, "")
		if err != nil {
			return sinks, err
		}
		log.Printf("POSTGRES: run %s", db.Run())
		sinks = append(sinks, db)
	}
	return sinks, nil
}

func serve(ctx context.Context, opts options, pop *world.Population, sinks []eventlog.Sink) error {
	col, err := metrics.NewCollector(nil)
	if err != nil {
		_ = eventlog.Tee(sinks...).Finalize()
		return err
	}
	col.Registry().MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := eventlog.NewRecorder()
	s := sim.New(pop, sim.Options{BatchSize: opts.batch, Log: eventlog.Tee(append(sinks, rec, col)...)})

	hub := api.NewHub()
	go hub.Run(ctx)
	srv := api.NewServer(s, hub, api.Options{Recorder: rec, Metrics: col})

	// cancelled when the listener fails
	animCtx, stopAnim := context.WithCancel(ctx)
	defer stopAnim()

	httpSrv := &http.Server{Addr: opts.serve, Handler: srv.Routes(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("OUTBREAK: live view on %s (%d agents, batch size %d)", opts.serve, pop.Len(), s.BatchSize())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve %s: %w", opts.serve, err)
			stopAnim()
		}
	}()

	animErr := srv.Animate(animCtx, opts.interval, opts.steps)
	select {
	case err := <-errCh:
		animErr = err
	default:
		if animErr == nil {
			// keep the final frame up until interrupted
			select {
			case <-ctx.Done():
			case err := <-errCh:
				animErr = err
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP: shutdown: %v", err)
	}
	return animErr
}
