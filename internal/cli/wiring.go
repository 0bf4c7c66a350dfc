package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"quiz-results-service/internal/app"
	"quiz-results-service/internal/config"
	"quiz-results-service/internal/domain"
	"quiz-results-service/internal/infra/memory"
	"quiz-results-service/internal/infra/postgres"
	redisstore "quiz-results-service/internal/infra/redis"
	"quiz-results-service/internal/logger"
)

// connections holds the connections a service was built on so callers can close them.
type connections struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	close []func()
}

func (b *connections) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
}

// buildService wires stores, quiz repository and user directory according to cfg.
func buildService(ctx context.Context, cfg config.Config, log *logger.Logger, metrics app.Metrics) (*app.ResultService, *connections, error) {
	b := &connections{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.close = append(b.close, func() { _ = b.redis.Close() })
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.close = append(b.close, pool.Close)
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if b.pool != nil {
		loader = postgres.NewQuizLoader(b.pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizRepository
	if b.redis != nil {
		quizzes = redisstore.NewQuizRepository(b.redis, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	var records app.RecordStore
	var users app.UserDirectory
	switch store := cfg.ResultStore(); store {
	case config.StorePostgres:
		if b.pool == nil {
			b.Close()
			return nil, nil, fmt.Errorf("results.store is %s but postgres.url is empty", store)
		}
		records = postgres.NewResultStore(b.pool)
		db := openBunDB(cfg.Postgres.URL)
		b.close = append(b.close, func() { _ = db.Close() })
		users = postgres.NewUserDirectory(db)
	case config.StoreRedis:
		if b.redis == nil {
			b.Close()
			return nil, nil, fmt.Errorf("results.store is %s but redis.addr is empty", store)
		}
		records = redisstore.NewResultStore(b.redis)
		users = redisstore.NewUserDirectory(b.redis)
	default:
		records = memory.NewResultStore()
		users = memory.NewUserDirectory(nil)
	}
	log.Info("result store selected", "store", cfg.ResultStore())

	opts := []app.Option{
		app.WithLogger(log),
		app.WithMaxRetries(cfg.MaxRetries()),
	}
	if cfg.Results.DefaultLimit > 0 {
		opts = append(opts, app.WithDefaultLimit(cfg.Results.DefaultLimit))
	}
	if metrics != nil {
		opts = append(opts, app.WithMetrics(metrics))
	}
	return app.NewResultService(records, quizzes, users, opts...), b, nil
}

// sampleQuizzes seeds the static loader used when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	options := []string{"A", "B", "C", "D"}
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "General knowledge",
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"4", "3", "5", "22"}, AnswerIndex: 0},
				{ID: "q2", Prompt: "Which planet is known as the red planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, AnswerIndex: 1},
				{ID: "q3", Prompt: "How many sides does a hexagon have?", Options: []string{"5", "8", "6", "7"}, AnswerIndex: 2},
				{ID: "q4", Prompt: "Pick the last option", Options: options, AnswerIndex: 3},
				{ID: "q5", Prompt: "Pick the first option", Options: options, AnswerIndex: 0},
			},
		},
	}
}
