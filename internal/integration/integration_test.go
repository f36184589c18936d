package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"golang.org/x/sync/errgroup"

	"quiz-contest-service/internal/app"
	"quiz-contest-service/internal/domain"
	pgstore "quiz-contest-service/internal/infra/postgres"
	pgmigrations "quiz-contest-service/internal/infra/postgres/migrations"
	infraredis "quiz-contest-service/internal/infra/redis"
)

func TestSubmitEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	bunDB := openBun(t, ctx, pgURL)
	defer bunDB.Close()
	seedContest(t, ctx, bunDB, sampleContest())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewContestRepository(pool)
	contests := infraredis.NewContestCache(redisClient, loader, 5*time.Minute)
	attempts := pgstore.NewAttemptRepository(bunDB)
	analytics := pgstore.NewAnalyticsRepository(pool)
	cache := infraredis.NewLeaderboardCache(redisClient, 5*time.Minute)

	results := app.NewResultsService(contests, attempts, analytics).WithCache(cache)
	service := app.NewSubmissionService(contests, attempts, results).WithInvalidator(cache)

	payload := app.SubmissionPayload{
		StartedAt: time.Now().Add(-time.Minute).Format(time.RFC3339),
		Answers: []app.SelectionPayload{
			{QuestionID: "q1", AnswerIDs: []string{"q1b"}},
			{QuestionID: "q2", AnswerIDs: []string{"q2a", "q2c"}},
		},
	}

	eval, err := service.Submit(ctx, "u1", "spring-quiz", payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if eval.TotalScore != 20 || eval.CorrectCount != 2 || eval.TotalQuestions != 2 {
		t.Fatalf("unexpected evaluation: %+v", eval)
	}

	// The attempt and its three answer rows are durable.
	attempt, err := results.UserAttempt(ctx, "u1", "spring-quiz")
	if err != nil {
		t.Fatalf("user attempt: %v", err)
	}
	if attempt.Score != 20 {
		t.Fatalf("persisted attempt score mismatch: %+v", attempt)
	}
	var answerRows int
	if err := bunDB.NewSelect().Table("user_answers").
		Where("attempt_id = ?", attempt.ID).
		ColumnExpr("count(*)").Scan(ctx, &answerRows); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if answerRows != 3 {
		t.Fatalf("expected 3 user answer rows, got %d", answerRows)
	}

	// Second submission on a single-attempt contest must be rejected.
	if _, err := service.Submit(ctx, "u1", "spring-quiz", payload); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	lb, err := results.Leaderboard(ctx, "spring-quiz")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u1" || lb.Entries[0].Score != 20 {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}

	stats, err := results.ContestStats(ctx, "spring-quiz")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 1 || len(stats.Questions) != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Questions[0].Answered != 1 || stats.Questions[0].Correct != 1 {
		t.Fatalf("unexpected q1 tally: %+v", stats.Questions[0])
	}
}

func TestConcurrentDuplicatesHitStorageGuard(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	bunDB := openBun(t, ctx, pgURL)
	defer bunDB.Close()
	seedContest(t, ctx, bunDB, sampleContest())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	contests := pgstore.NewContestRepository(pool)
	attempts := pgstore.NewAttemptRepository(bunDB)
	results := app.NewResultsService(contests, attempts, pgstore.NewAnalyticsRepository(pool))
	service := app.NewSubmissionService(contests, attempts, results)

	payload := app.SubmissionPayload{
		StartedAt: time.Now().Format(time.RFC3339),
		Answers:   []app.SelectionPayload{{QuestionID: "q1", AnswerIDs: []string{"q1b"}}},
	}

	// Everyone races past the read-side pre-check; the attempt_locks primary
	// key must admit exactly one attempt.
	var g errgroup.Group
	for i := 0; i < 6; i++ {
		g.Go(func() error {
			_, err := service.Submit(ctx, "racer", "spring-quiz", payload)
			if err != nil && !errors.Is(err, domain.ErrDuplicateSubmission) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	if err := bunDB.NewSelect().Table("attempts").
		Where("user_id = ?", "racer").
		ColumnExpr("count(*)").Scan(ctx, &count); err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one attempt after the race, got %d", count)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "contest", "POSTGRES_PASSWORD": "contestpass", "POSTGRES_DB": "contestdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://contest:contestpass@%s:%s/contestdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedContest(t *testing.T, ctx context.Context, db *bun.DB, contest domain.Contest) {
	t.Helper()
	if err := pgstore.UpsertContest(ctx, db, contest); err != nil {
		t.Fatalf("seed contest: %v", err)
	}
}

func sampleContest() domain.Contest {
	return domain.Contest{
		ID:                    "contest-1",
		Slug:                  "spring-quiz",
		Name:                  "Spring Quiz",
		Active:                true,
		AllowMultipleAttempts: false,
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
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
