package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-contest-service/internal/app"
	"quiz-contest-service/internal/auth"
	"quiz-contest-service/internal/config"
	"quiz-contest-service/internal/domain"
	"quiz-contest-service/internal/infra/memory"
	pgstore "quiz-contest-service/internal/infra/postgres"
	rediscache "quiz-contest-service/internal/infra/redis"
	transport "quiz-contest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	contestTTL := config.TTLDuration(cfg.Contest.TTL, 10*time.Minute)

	var (
		contests  app.ContestRepository
		attempts  app.AttemptRepository
		analytics app.AnalyticsRepository
		bunDB     *bun.DB
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()

		loader := pgstore.NewContestRepository(pool)
		if redisClient != nil {
			contests = rediscache.NewContestCache(redisClient, loader, contestTTL)
		} else {
			contests = memory.NewContestRepository(loader, contestTTL)
		}
		attempts = pgstore.NewAttemptRepository(bunDB)
		analytics = pgstore.NewAnalyticsRepository(pool)
	} else {
		// No database configured: run fully in-memory with a demo contest.
		log.Printf("postgres url not configured; using in-memory stores")
		loader := memory.NewStaticContestLoader(sampleContests())
		contests = memory.NewContestRepository(loader, contestTTL)
		repo := memory.NewAttemptRepository()
		attempts = repo
		analytics = repo
	}

	feed := app.NewLeaderboardFeed()
	results := app.NewResultsService(contests, attempts, analytics)
	submissions := app.NewSubmissionService(contests, attempts, results).WithLiveFeed(feed)
	if redisClient != nil {
		cache := rediscache.NewLeaderboardCache(redisClient, redisTTL)
		results.WithCache(cache)
		submissions.WithInvalidator(cache)
	}

	verifier := auth.NewTokenVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	handler := transport.NewHandler(submissions, results, verifier)
	wsHandler := transport.NewWSHandler(results, feed)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("GET /contests/{slug}/live", wsHandler.ServeLive)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting contest service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleContests backs the no-database demo mode.
func sampleContests() map[string]domain.Contest {
	return map[string]domain.Contest{
		"demo": {
			ID:     "contest-demo",
			Slug:   "demo",
			Name:   "Demo Contest",
			Active: true,
			Questions: []domain.Question{
				{
					ID:       "q1",
					Title:    "What is 2 + 2?",
					Type:     domain.SingleChoice,
					Position: 1,
					Answers: []domain.Answer{
						{ID: "q1a", Content: "3", Score: 0, Position: 1},
						{ID: "q1b", Content: "4", Score: 10, Position: 2},
						{ID: "q1c", Content: "5", Score: 0, Position: 3},
					},
				},
				{
					ID:       "q2",
					Title:    "Select the even numbers",
					Type:     domain.MultipleChoices,
					Position: 2,
					Answers: []domain.Answer{
						{ID: "q2a", Content: "2", Score: 5, Position: 1},
						{ID: "q2b", Content: "3", Score: 0, Position: 2},
						{ID: "q2c", Content: "4", Score: 5, Position: 3},
					},
				},
			},
		},
	}
}
