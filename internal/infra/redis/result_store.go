package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"quiz-results-service/internal/domain"
	"quiz-results-service/internal/infra/keylock"
)

// ResultStore keeps result records in Redis.
//
// Layout:
//
//	HSET result:{quizID}:{userID} score .. attempts .. completed_at ..
//	SADD results:quiz:{quizID} {userID}
//	SADD results:user:{userID} {quizID}
//
// Updates run under WATCH on the record hash, so a writer in another process
// that commits first makes EXEC fail and the update reports
// domain.ErrConcurrencyConflict. Writers in this process are serialized by a
// per-key lock before reaching Redis and never conflict with each other.
type ResultStore struct {
	client *redis.Client
	keys   *keylock.Map
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client, keys: keylock.New()}
}

type recordHash struct {
	UserID         string `redis:"user_id"`
	QuizID         string `redis:"quiz_id"`
	Score          int    `redis:"score"`
	TotalQuestions int    `redis:"total_questions"`
	Percentage     int    `redis:"percentage"`
	TimeSpent      int    `redis:"time_spent"`
	Attempts       int    `redis:"attempts"`
	CompletedAt    int64  `redis:"completed_at"`
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *ResultStore) Get(ctx context.Context, userID, quizID string) (domain.ResultRecord, error) {
	record, err := readRecord(ctx, s.client, s.recordKey(userID, quizID))
	if err != nil {
		return domain.ResultRecord{}, domain.StorageError("get result", err)
	}
	if record == nil {
		return domain.ResultRecord{}, domain.ErrResultNotFound
	}
	return *record, nil
}

func (s *ResultStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.ResultRecord, error) {
	userIDs, err := s.client.SMembers(ctx, s.quizIndexKey(quizID)).Result()
	if err != nil {
		return nil, domain.StorageError("list quiz results", err)
	}
	keys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		keys[i] = s.recordKey(userID, quizID)
	}
	return s.readMany(ctx, keys)
}

func (s *ResultStore) ListByUser(ctx context.Context, userID string) ([]domain.ResultRecord, error) {
	quizIDs, err := s.client.SMembers(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		return nil, domain.StorageError("list user results", err)
	}
	keys := make([]string, len(quizIDs))
	for i, quizID := range quizIDs {
		keys[i] = s.recordKey(userID, quizID)
	}
	return s.readMany(ctx, keys)
}

func (s *ResultStore) Update(ctx context.Context, userID, quizID string, apply func(current *domain.ResultRecord) (domain.ResultRecord, error)) (domain.ResultRecord, error) {
	key := s.recordKey(userID, quizID)
	unlock := s.keys.Lock(key)
	defer unlock()

	var (
		next     domain.ResultRecord
		applyErr error
	)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readRecord(ctx, tx, key)
		if err != nil {
			return err
		}
		next, applyErr = apply(current)
		if applyErr != nil {
			return applyErr
		}
		next.UserID = userID
		next.QuizID = quizID

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, toHash(next))
			pipe.SAdd(ctx, s.quizIndexKey(quizID), userID)
			pipe.SAdd(ctx, s.userIndexKey(userID), quizID)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case applyErr != nil:
		return domain.ResultRecord{}, applyErr
	case errors.Is(err, redis.TxFailedErr):
		return domain.ResultRecord{}, domain.ErrConcurrencyConflict
	default:
		return domain.ResultRecord{}, domain.StorageError("update result", err)
	}
}

func (s *ResultStore) Delete(ctx context.Context, userID, quizID string) error {
	key := s.recordKey(userID, quizID)
	unlock := s.keys.Lock(key)
	defer unlock()

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, key)
		pipe.SRem(ctx, s.quizIndexKey(quizID), userID)
		pipe.SRem(ctx, s.userIndexKey(userID), quizID)
		return nil
	})
	if err != nil {
		return domain.StorageError("delete result", err)
	}
	if del.Val() == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

const maxPurgeAttempts = 10

// DeleteByQuiz removes every record listed in the quiz index. The index is
// watched, so a record written between listing and deleting aborts the
// transaction and the purge starts over with the fresh member list.
func (s *ResultStore) DeleteByQuiz(ctx context.Context, quizID string) (int, error) {
	indexKey := s.quizIndexKey(quizID)
	var err error
	for attempt := 0; attempt < maxPurgeAttempts; attempt++ {
		var removed int
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			userIDs, err := tx.SMembers(ctx, indexKey).Result()
			if err != nil {
				return err
			}
			if len(userIDs) == 0 {
				return nil
			}

			keys := make([]string, len(userIDs))
			for i, userID := range userIDs {
				keys[i] = s.recordKey(userID, quizID)
			}
			var del *redis.IntCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				del = pipe.Del(ctx, keys...)
				for _, userID := range userIDs {
					pipe.SRem(ctx, s.userIndexKey(userID), quizID)
				}
				pipe.Del(ctx, indexKey)
				return nil
			})
			if err != nil {
				return err
			}
			removed = int(del.Val())
			return nil
		}, indexKey)
		if err == nil {
			return removed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return 0, domain.StorageError("purge quiz results", err)
}

// readMany fetches records in one pipeline. Each HGETALL is atomic, so every
// returned record is a consistent snapshot. Index entries whose hash is gone
// are skipped.
func (s *ResultStore) readMany(ctx context.Context, keys []string) ([]domain.ResultRecord, error) {
	out := make([]domain.ResultRecord, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("read results", err)
	}
	for _, cmd := range cmds {
		record, err := decodeRecord(cmd)
		if err != nil {
			return nil, domain.StorageError("decode result", err)
		}
		if record != nil {
			out = append(out, *record)
		}
	}
	return out, nil
}

func readRecord(ctx context.Context, r hashReader, key string) (*domain.ResultRecord, error) {
	return decodeRecord(r.HGetAll(ctx, key))
}

func decodeRecord(cmd *redis.MapStringStringCmd) (*domain.ResultRecord, error) {
	values, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	var h recordHash
	if err := cmd.Scan(&h); err != nil {
		return nil, err
	}
	return &domain.ResultRecord{
		UserID:         h.UserID,
		QuizID:         h.QuizID,
		Score:          h.Score,
		TotalQuestions: h.TotalQuestions,
		Percentage:     h.Percentage,
		TimeSpent:      h.TimeSpent,
		Attempts:       h.Attempts,
		CompletedAt:    time.Unix(0, h.CompletedAt).UTC(),
	}, nil
}

func toHash(r domain.ResultRecord) map[string]interface{} {
	return map[string]interface{}{
		"user_id":         r.UserID,
		"quiz_id":         r.QuizID,
		"score":           r.Score,
		"total_questions": r.TotalQuestions,
		"percentage":      r.Percentage,
		"time_spent":      r.TimeSpent,
		"attempts":        r.Attempts,
		"completed_at":    r.CompletedAt.UnixNano(),
	}
}

func (s *ResultStore) recordKey(userID, quizID string) string {
	return "result:" + quizID + ":" + userID
}

func (s *ResultStore) quizIndexKey(quizID string) string {
	return "results:quiz:" + quizID
}

func (s *ResultStore) userIndexKey(userID string) string {
	return "results:user:" + userID
}
