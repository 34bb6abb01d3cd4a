/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/db"
	"github.com/friendsincode/grimnir_jukebox/internal/logbuffer"
	"github.com/friendsincode/grimnir_jukebox/internal/logging"
	"github.com/friendsincode/grimnir_jukebox/internal/server"
	"github.com/friendsincode/grimnir_jukebox/internal/sources"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
	"github.com/friendsincode/grimnir_jukebox/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "grimnirjuke",
	Short: "Grimnir Jukebox - household playback orchestration daemon",
	Long:  "Grimnir Jukebox drives a music sequencer, streamed-video channels and spoken announcements from one shared control surface.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Grimnir Jukebox daemon",
	Long:  "Start the playback workers and the HTTP control API",
	RunE:  runServe,
}

var importSourcesCmd = &cobra.Command{
	Use:   "import-sources [file]",
	Short: "Import a yaml source rotation into the database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImportSources,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importSourcesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig(logBuf *logbuffer.Buffer) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logBuf != nil {
		logger = logging.SetupWithWriter(cfg.Environment, logbuffer.NewWriter(logBuf, nil))
	} else {
		logger = logging.Setup(cfg.Environment)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logBuf := logbuffer.New(0)
	if err := loadConfig(logBuf); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Grimnir Jukebox starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "grimnir-jukebox",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logBuf, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	srv.Start()

	httpServer := srv.HTTPServer()
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Grimnir Jukebox stopped")
	return nil
}

func runImportSources(cmd *cobra.Command, args []string) error {
	if err := loadConfig(nil); err != nil {
		return err
	}

	path := cfg.SourcesFile
	if len(args) == 1 {
		path = args[0]
	}

	list, err := sources.LoadFile(path)
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		_ = db.Close(database)
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := db.NewStore(database, logger)
	if err := store.ReplaceSources(list); err != nil {
		return fmt.Errorf("store sources: %w", err)
	}

	logger.Info().Int("count", len(list)).Str("file", path).Msg("sources imported")
	return nil
}
