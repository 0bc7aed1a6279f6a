package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/jfenske/recollect/internal/config"
	"github.com/jfenske/recollect/internal/ingest"
	"github.com/jfenske/recollect/internal/scheduler"
	"github.com/jfenske/recollect/internal/storage"
)

func main() {
	defaults := config.Default()

	flags := pflag.NewFlagSet("recollect", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to YAML config file")
	doSync := flags.Bool("sync", false, "synchronize sources before reporting")
	flags.StringSlice("sources", nil, "highlight sources: directories or git URLs")
	flags.String("repos_dir", defaults.ReposDir, "checkout directory for git sources")
	flags.String("log_level", defaults.LogLevel, "log level: debug, info, warn, error")
	flags.String("storage.driver", defaults.Storage.Driver, "persistence driver: file or sqlite")
	flags.String("storage.path", defaults.Storage.Path, "snapshot file or database path")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fatal("parse flags", err)
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fatal("load config", err)
	}
	setupLogging(cfg.LogLevel)

	gateway, closeGateway, err := openGateway(cfg)
	if err != nil {
		fatal("open storage", err)
	}
	defer closeGateway()

	sched := scheduler.New(gateway, scheduler.NopSink{}, scheduler.Options{
		Params:    cfg.Params(),
		Limits:    cfg.Limits(),
		SaveDelay: cfg.SaveDelay(),
	})

	ctx := context.Background()
	if err := sched.Load(ctx); err != nil {
		fatal("load state", err)
	}

	if *doSync {
		report, err := ingest.Run(ctx, sched, cfg.Sources, cfg.ReposDir)
		if err != nil {
			fatal("sync sources", err)
		}
		for _, e := range report.Errors {
			slog.Warn("source error", "error", e)
		}
	}

	printSummary(sched)

	if err := sched.Close(ctx); err != nil {
		fatal("flush state", err)
	}
}

func openGateway(cfg *config.Config) (scheduler.PersistenceGateway, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		return storage.NewFile(cfg.Storage.Path), func() {}, nil
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})))
}

func printSummary(sched *scheduler.Scheduler) {
	progress := sched.GetProgress()
	stats := sched.GlobalStats()

	fmt.Printf("Due: %d  New: %d  Learned: %d  Retention: %.0f%%\n",
		progress.Due, progress.NewCards, progress.Learned, progress.Retention*100)
	fmt.Printf("Today: %d new / %d reviews remaining  Streak: %d days\n",
		sched.RemainingNewToday(""), sched.RemainingReviewsToday(""), stats.StreakDays)

	for _, g := range sched.CardGroups() {
		gp, ok := sched.GetGroupProgress(g.ID)
		if !ok {
			continue
		}
		fmt.Printf("  %-20s due %d, new %d, learned %d\n", g.Name, gp.Due, gp.NewCards, gp.Learned)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
