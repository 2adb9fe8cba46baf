package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-puzzle-trainer/internal/adapter/trainingpresenter"
	appcfg "github.com/park285/cheese-puzzle-trainer/internal/config"
	"github.com/park285/cheese-puzzle-trainer/internal/httpapi"
	"github.com/park285/cheese-puzzle-trainer/internal/msgcat"
	"github.com/park285/cheese-puzzle-trainer/internal/obslog"
	"github.com/park285/cheese-puzzle-trainer/internal/trainerbuilder"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.Init(obslog.Options{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		ToFile:  cfg.Log.ToFile,
		File:    cfg.Log.File,
		Format:  cfg.Log.Format,
		Caller:  cfg.Log.Caller,
	})
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := trainerbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("trainer init error", zap.Error(err))
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}
	server, err := httpapi.NewServer(
		deps.Service,
		trainingpresenter.NewFormatter(catalog, cfg.NoveltyWindow),
		httpapi.Options{
			LegacyCoercion: cfg.LegacyCoercion,
			RequestTimeout: cfg.RequestTimeout,
			Health:         deps.Health,
		},
		logger.Named("http"),
	)
	if err != nil {
		logger.Fatal("http server init error", zap.Error(err))
	}

	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	logger.Info("puzzle trainer stopped")
}
