package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/api"
	"github.com/darts-scorer/internal/config"
	"github.com/darts-scorer/internal/kafka"
	"github.com/darts-scorer/internal/logging"
	"github.com/darts-scorer/internal/match"
	"github.com/darts-scorer/internal/scheduler"
	"github.com/darts-scorer/internal/session"
	"github.com/darts-scorer/internal/storage"
	"github.com/darts-scorer/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.New()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, pg, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	bridge := storage.NewBridge(backend, clockwork.NewRealClock(), cfg.Store.Expiry)

	// Analytics
	var emitter session.Emitter
	var analytics api.Analytics
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		if producer.IsEnabled() {
			emitter = producer

			consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers)
			if err != nil {
				log.Warn().Err(err).Msg("kafka consumer not available")
			} else {
				consumer.Start()
				defer consumer.Stop()
				analytics = consumer
			}
		}
	}

	manager := session.NewManager(bridge, emitter, match.Config{
		StartingScore: cfg.Match.StartingScore,
		LegsToWin:     cfg.Match.LegsToWin,
	})

	var archive api.Archive
	if pg != nil {
		manager.SetArchiver(pg)
		archive = pg
	}

	// Scoreboard feed
	hub := websocket.NewHub()
	manager.SetOnChange(hub.BroadcastState)
	go hub.Run(ctx)
	wsHandler := websocket.NewHandler(hub, manager)
	upgrader := websocket.NewUpgrader(cfg.Server.AllowedOrigins)

	sched, err := scheduler.NewScheduler(bridge, manager, scheduler.Options{
		SweepInterval: cfg.Scheduler.SweepInterval,
		EvictInterval: cfg.Scheduler.EvictInterval,
		IdleTimeout:   cfg.Scheduler.IdleTimeout,
	})
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping scheduler")
		}
	}()

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", api.NewHandlers(manager, archive, analytics, emitter != nil).RegisterRoutes)

	// WebSocket endpoint
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, wsHandler, upgrader, w, r)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("store", cfg.Store.Backend).
			Bool("kafka", emitter != nil).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server exited properly")
	return nil
}

// openStore connects the configured key/value backend. The postgres store doubles as the
// finished match archive.
func openStore(ctx context.Context, cfg config.Store) (storage.Backend, *storage.PostgresStore, func(), error) {
	switch cfg.Backend {
	case config.StorePostgres:
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Msg("using postgres match store")
		return pg, pg, pg.Close, nil

	case config.StoreRedis:
		rs, err := storage.NewRedisStore(ctx, cfg.RedisURL, cfg.Expiry)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Msg("using redis match store")
		return rs, nil, func() {
			if err := rs.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis store")
			}
		}, nil

	default:
		log.Warn().Msg("using in-memory match store, state is lost on restart")
		return storage.NewMemoryBackend(), nil, func() {}, nil
	}
}
