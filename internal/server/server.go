/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, persistence, workers, the player
// service and the HTTP control surface into one runnable daemon.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_jukebox/internal/announce"
	"github.com/friendsincode/grimnir_jukebox/internal/api"
	"github.com/friendsincode/grimnir_jukebox/internal/config"
	"github.com/friendsincode/grimnir_jukebox/internal/db"
	"github.com/friendsincode/grimnir_jukebox/internal/eventbus"
	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/logbuffer"
	"github.com/friendsincode/grimnir_jukebox/internal/player"
	"github.com/friendsincode/grimnir_jukebox/internal/playout"
	"github.com/friendsincode/grimnir_jukebox/internal/sequencer"
	"github.com/friendsincode/grimnir_jukebox/internal/sources"
	"github.com/friendsincode/grimnir_jukebox/internal/state"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
	"github.com/friendsincode/grimnir_jukebox/internal/video"
)

// Server bundles the HTTP surface and the playback workers.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	store     *db.Store
	state     *state.State
	bus       *events.Bus
	natsBr    *eventbus.Bridge
	logBuffer *logbuffer.Buffer

	seqWorker *sequencer.Worker
	vidWorker *video.Worker
	annWorker *announce.Worker
	manager   *sources.Manager
	service   *player.Service
	api       *api.API

	metricsStop chan struct{}
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	// Skip the request timeout for the websocket.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		state:     state.New(),
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(srv.router, "grimnir-jukebox-api"),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	// Persistence is optional: without it the jukebox runs on the yaml
	// rotation file or built-in defaults.
	database, err := db.Connect(s.cfg)
	if err != nil {
		s.logger.Warn().Err(err).Msg("database unavailable, running without persistence")
	} else if err := db.Migrate(database); err != nil {
		s.logger.Warn().Err(err).Msg("migration failed, running without persistence")
		_ = db.Close(database)
		database = nil
	}
	if database != nil {
		if err := db.RegisterCallbacks(database); err != nil {
			s.logger.Warn().Err(err).Msg("telemetry callbacks not registered")
		}
		s.db = database
		s.DeferClose(func() error { return db.Close(database) })

		s.metricsStop = make(chan struct{})
		go s.runConnectionMetrics()
	}
	s.store = db.NewStore(database, s.logger)

	if s.cfg.NATSURL != "" {
		bridge, err := eventbus.NewBridge(s.cfg.NATSURL, s.bus, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("nats bridge unavailable, events stay local")
		} else {
			s.natsBr = bridge
			s.DeferClose(bridge.Close)
		}
	}

	if s.cfg.RedisAddr != "" {
		bridge, err := eventbus.NewRedisBridge(s.cfg.RedisAddr, s.bus, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis bridge unavailable, events stay local")
		} else {
			s.DeferClose(bridge.Close)
		}
	}

	list, index := sources.Load(s.store, s.cfg.SourcesFile, s.logger)
	s.manager = sources.NewManager(list, index, s.store, s.cfg.SourceSaveDebounce, s.logger)

	launcher := playout.NewMPVLauncher(s.cfg.PlayerBin, s.logger)

	s.seqWorker = sequencer.NewWorker(s.cfg, sequencer.MPDDialer(s.cfg.MPDAddr()), s.state, s.bus, s.logger)

	videoSource := video.NewYtdlpSource(s.cfg.YtdlpBin, s.logger)
	s.vidWorker = video.NewWorker(s.cfg, videoSource, launcher, s.store, s.state, s.bus, s.logger)

	synth := announce.NewPiperSynthesizer(s.cfg.PiperBin, s.cfg.PiperVoiceModel, s.logger)

	s.service = player.NewService(s.cfg, s.seqWorker, s.vidWorker, nil, s.manager, s.state, s.bus, s.logger)

	// The announcer ducks music through the service; the service sends
	// announcements to the worker. Wire the cycle explicitly.
	s.annWorker = announce.NewWorker(s.cfg, synth, launcher, s.service, s.state, s.bus, s.logger)
	s.service.SetAnnouncer(s.annWorker)

	s.api = api.New(s.service, s.state, s.bus, s.logBuffer, s.logger)
	return nil
}

// Start launches the workers and begins playback of the current source.
func (s *Server) Start() {
	s.seqWorker.Start()
	s.vidWorker.Start()
	s.annWorker.Start()
	s.service.SetReady()

	if err := s.service.PlayCurrent(); err != nil {
		s.logger.Warn().Err(err).Msg("no source to start")
	}
}

func (s *Server) runConnectionMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.metricsStop:
			return
		case <-ticker.C:
			db.UpdateConnectionMetrics(s.db)
		}
	}
}

func (s *Server) configureRoutes() {
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close stops the workers, flushes pending state and releases owned
// resources in reverse order.
func (s *Server) Close() error {
	s.annWorker.Stop()
	s.vidWorker.Stop()
	s.seqWorker.Stop()
	s.manager.Flush()

	if s.metricsStop != nil {
		close(s.metricsStop)
		s.metricsStop = nil
	}

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
