package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/config"
	"github.com/gokatarajesh/smart-quiz/internal/leaderboard"
	"github.com/gokatarajesh/smart-quiz/internal/logging"
	"github.com/gokatarajesh/smart-quiz/internal/metrics"
	"github.com/gokatarajesh/smart-quiz/internal/profile"
	"github.com/gokatarajesh/smart-quiz/internal/question"
	"github.com/gokatarajesh/smart-quiz/internal/question/external"
	"github.com/gokatarajesh/smart-quiz/internal/quiz"
	"github.com/gokatarajesh/smart-quiz/internal/recovery"
	"github.com/gokatarajesh/smart-quiz/internal/server"
	"github.com/gokatarajesh/smart-quiz/internal/storage"
	ws "github.com/gokatarajesh/smart-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (store backends, quiz machine, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	machine *quiz.Machine
	http    *http.Server
	closers []func()
}

// New bootstraps the key-value store, the quiz services and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store_driver", cfg.Storage.Driver).Msg("starting application bootstrap")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	backend, closers := openBackend(ctx, cfg, logger)
	store := storage.New(ctx, backend, logger, storage.Options{
		KeyPrefix: cfg.Storage.KeyPrefix,
		OnFailure: m.StorageFailure,
	})

	customRepo := question.NewCustomRepository(store)
	if n, err := question.ImportSeedFile(ctx, cfg.Trivia.CustomQuestionsFile, customRepo); err != nil {
		return nil, fmt.Errorf("import custom questions: %w", err)
	} else if n > 0 {
		logger.Info().Int("count", n).Str("file", cfg.Trivia.CustomQuestionsFile).Msg("custom questions imported")
	}

	opentdbClient := external.NewOpenTDBClient(cfg.Trivia.BaseURL, &http.Client{Timeout: cfg.Trivia.FetchTimeout})
	questionSvc := question.NewService(opentdbClient, customRepo, logger, question.ServiceOptions{})

	wsHub := ws.NewHub(logger)
	leaderboardSvc := leaderboard.NewService(store, logger, leaderboard.ServiceOptions{
		Capacity: cfg.Leaderboard.Capacity,
		Notifier: leaderboard.NewBroadcaster(wsHub, logger),
		Metrics:  m,
	})

	machine := quiz.NewMachine(store, questionSvc, leaderboardSvc, logger, quiz.Options{
		Publisher: quiz.NewHubPublisher(wsHub, logger),
		Metrics:   m,
		Defaults: quiz.Defaults{
			QuestionCount:      cfg.Quiz.DefaultQuestionCount,
			SecondsPerQuestion: cfg.Quiz.DefaultQuestionSeconds,
		},
	})
	recoveryCtrl := recovery.NewController(store, machine, logger)
	if summary, ok := recoveryCtrl.Check(ctx); ok {
		logger.Info().
			Str("session_id", summary.SessionID).
			Int("index", summary.Index).
			Int("total", summary.Total).
			Msg("unfinished quiz available to resume")
	}

	apiServer := server.NewHTTPServer(cfg, logger,
		server.Deps{
			Storage:     store,
			Connections: wsHub,
			Gatherer:    reg,
			Middleware:  m.Middleware,
		},
		quiz.NewHTTPHandler(machine, logger),
		quiz.NewWSHandler(machine, wsHub, logger),
		recovery.NewHTTPHandler(recoveryCtrl),
		question.NewHTTPHandler(customRepo, logger),
		leaderboard.NewHTTPHandler(leaderboardSvc, logger),
		profile.NewHTTPHandler(profile.NewService(store, logger), machine),
	)

	return &Application{
		cfg:     cfg,
		logger:  logger,
		machine: machine,
		http:    apiServer,
		closers: closers,
	}, nil
}

// openBackend connects the configured durable store. A backend that cannot be opened is
// returned as nil so the Store runs on memory.
func openBackend(ctx context.Context, cfg *config.App, logger zerolog.Logger) (storage.Backend, []func()) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		return storage.NewRedisBackend(client), []func(){func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("redis shutdown error")
			}
		}}
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			logger.Error().Err(err).Msg("connect postgres")
			return nil, nil
		}
		return storage.NewPostgresBackend(pool), []func(){pool.Close}
	case config.DriverSQLite:
		backend, err := storage.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Storage.SQLitePath).Msg("open sqlite store")
			return nil, nil
		}
		return backend, []func(){func() { _ = backend.Close() }}
	case config.DriverMySQL:
		backend, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN)
		if err != nil {
			logger.Error().Err(err).Msg("open mysql store")
			return nil, nil
		}
		return backend, []func(){func() { _ = backend.Close() }}
	default:
		return storage.NewMemoryBackend(), nil
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		a.shutdown()
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}
	a.shutdown()

	a.logger.Info().Msg("shutdown complete")
	return nil
}

// shutdown saves an unfinished quiz before the store goes away.
func (a *Application) shutdown() {
	a.machine.Close(context.Background())
	for _, closeFn := range a.closers {
		closeFn()
	}
}
