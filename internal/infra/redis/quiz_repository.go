package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-results-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quiz answer keys in Redis and falls back to a loader on cache miss.
// Answer keys are stored as: SET quiz:{quizID}:answers "[0,2,1]" EX ttl
// Scoring only needs the ordered answer positions, so prompts and options are not cached.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		raw, err := json.Marshal(quiz.AnswerKey())
		if err != nil {
			return domain.Quiz{}, err
		}
		// Cache writes are best effort; the loaded quiz is still served.
		_ = r.client.Set(ctx, r.answersKey(quizID), raw, r.ttlWithJitter()).Err()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached answer key of a quiz.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	if err := r.client.Del(ctx, r.answersKey(quizID)).Err(); err != nil {
		return domain.StorageError("invalidate quiz cache", err)
	}
	return nil
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	// Any read error, redis.Nil included, is treated as a miss.
	raw, err := r.client.Get(ctx, r.answersKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var key []int
	if err := json.Unmarshal(raw, &key); err != nil {
		return domain.Quiz{}, false
	}
	return buildQuizFromCache(quizID, key), true
}

func (r *QuizRepository) answersKey(quizID string) string {
	return "quiz:" + quizID + ":answers"
}

func buildQuizFromCache(quizID string, answerKey []int) domain.Quiz {
	questions := make([]domain.Question, len(answerKey))
	for i, idx := range answerKey {
		// prompt and options are not cached in this lightweight form
		questions[i] = domain.Question{AnswerIndex: idx}
	}
	return domain.Quiz{ID: quizID, Questions: questions}
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
