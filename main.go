package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/EmpoweredVote/memoboard/internal/config"
	"github.com/EmpoweredVote/memoboard/internal/db"
	"github.com/EmpoweredVote/memoboard/internal/housekeeping"
	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/ratelimit"
	"github.com/EmpoweredVote/memoboard/internal/seeds"
	"github.com/EmpoweredVote/memoboard/internal/server"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/store/gormstore"
	"github.com/EmpoweredVote/memoboard/internal/store/memstore"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(nil)
	sweeper, err := housekeeping.New(s, limiter, log, cfg.SweepCron, nil)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sweeper.Stop(stopCtx)
	}()

	handler := server.NewRouter(server.Deps{
		Config:  cfg,
		Store:   s,
		Limiter: limiter,
		Logger:  log,
	})
	return server.Run(ctx, "0.0.0.0:"+cfg.Port, handler, log, 15*time.Second)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("using in-memory store; data is lost on restart")
		s := memstore.New()
		users := seeds.AvailableSeedUsers(os.Getenv)
		created, err := seeds.SeedUsers(ctx, s, users, io.Discard)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		log.Info("seeded in-memory store", "users", created)
		return s, nil
	}

	gdb, err := db.Connect(ctx, cfg.DatabaseURL, log, cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := gormstore.New(gdb)
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", "schema", models.Schema)
	return s, nil
}
