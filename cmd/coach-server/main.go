package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-coach/internal/analysis"
	"github.com/park285/chess-coach/internal/apiclient"
	"github.com/park285/chess-coach/internal/coach"
	appcfg "github.com/park285/chess-coach/internal/config"
	"github.com/park285/chess-coach/internal/engine"
	"github.com/park285/chess-coach/internal/msgcat"
	"github.com/park285/chess-coach/internal/obslog"
	"github.com/park285/chess-coach/internal/server"
	"github.com/park285/chess-coach/internal/session"
	"github.com/park285/chess-coach/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	rdb, err := openRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	repo, closeRepo, err := openRepository(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("repository init error: %v", err)
	}
	defer closeRepo()

	var clientOpts []apiclient.Option
	headers := authHeaders(cfg.CoachAPIToken)
	if headers != nil {
		clientOpts = append(clientOpts, apiclient.WithHeaderProvider(headers))
	}

	coachClient, err := coach.NewClient(cfg.CoachAPIURL, cfg.CoachTimeout, logger, clientOpts...)
	if err != nil {
		log.Fatalf("coach client init error: %v", err)
	}

	var analyzer session.Analyzer
	if cfg.AnalysisAPIURL != "" {
		ac, err := analysis.NewClient(cfg.AnalysisAPIURL, cfg.AnalysisTimeout, logger, clientOpts...)
		if err != nil {
			log.Fatalf("analysis client init error: %v", err)
		}
		analyzer = ac
	}

	msgs, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	mgr, err := session.NewManager(
		engine.NewAdapter(logger),
		session.NewStore(rdb, cfg.SessionTTL()),
		repo,
		coachClient,
		analyzer,
		session.Config{
			MaxSessions:  cfg.MaxSessions,
			TTL:          cfg.SessionTTL(),
			HistoryLimit: cfg.HistoryLimit,
		},
		logger,
	)
	if err != nil {
		log.Fatalf("session manager init error: %v", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	go mgr.RunSweeper(rootCtx, time.Minute)

	var stream *coach.EventStream
	if cfg.CoachWSURL != "" {
		stream = coach.NewEventStream(cfg.CoachWSURL, 5, time.Second)
		if headers != nil {
			stream.SetHeaderProvider(coach.HeaderProvider(headers))
		}
		stream.OnStateChange(func(state coach.StreamState) {
			logger.Info("coach_stream_state", zap.String("state", string(state)))
		})
		stream.OnEvent(func(event *coach.Event) {
			switch event.Type {
			case "hint", "advice", "analysis":
				err := mgr.DeliverHint(rootCtx, event.SessionID, event.Epoch, event.Text, event.Line)
				if err != nil {
					logger.Debug("coach_event_dropped",
						zap.String("type", event.Type),
						zap.String("session_id", event.SessionID),
						zap.Error(err))
				}
			default:
				logger.Debug("coach_event_ignored", zap.String("type", event.Type))
			}
		})
		cctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		if err := stream.Connect(cctx); err != nil {
			logger.Warn("coach_stream_connect_failed", zap.Error(err))
		}
		cancel()
	}

	srv, err := server.New(mgr, msgs, logger)
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}
	go func() {
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Fatal("server_stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown_requested")

	rootCancel()
	if stream != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = stream.Close(closeCtx)
		cancel()
	}
	if err := srv.Shutdown(); err != nil {
		logger.Warn("shutdown_error", zap.Error(err))
	}
}

// authHeaders builds the shared header closure for the coach backends, or
// nil when no token is configured.
func authHeaders(token string) func() map[string]string {
	if token == "" {
		return nil
	}
	return func() map[string]string {
		return map[string]string{"Authorization": "Bearer " + token}
	}
}

func openRedis(rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		rawURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// openRepository prefers Postgres and falls back to the in-memory archive when
// DATABASE_URL is not set.
func openRepository(databaseURL string, logger *zap.Logger) (store.Repository, func(), error) {
	if databaseURL == "" {
		logger.Warn("archive_in_memory_only")
		return store.NewMemoryRepository(), func() {}, nil
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store.NewRepository(db), func() { _ = db.Close() }, nil
}
