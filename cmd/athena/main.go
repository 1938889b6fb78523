package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"athena/internal/app"
	"athena/internal/config"
	"athena/internal/server"
	"athena/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		logger.Error("failed to parse session TTL", "err", err)
		os.Exit(1)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		JWTSecret:       cfg.JWTSecret,
		SessionTTL:      sessionTTL,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GenerationModel: cfg.GenerationModel,
		SystemPrompt:    cfg.SystemPrompt,
		HistoryLimit:    cfg.HistoryLimit,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}

	httpServer := server.New(server.Config{
		App: appCore,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("athena server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
