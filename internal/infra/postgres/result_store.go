package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quiz-results-service/internal/domain"
)

const recordColumns = `user_id, quiz_id, score, total_questions, percentage, time_spent, attempts, completed_at`

// ResultStore keeps result records in the quiz_results table.
//
// Update holds a row lock (SELECT ... FOR UPDATE) for the duration of its
// transaction. The first insert for a key uses ON CONFLICT DO NOTHING; when a
// concurrent transaction inserted the row first, no row is affected and the
// update reports domain.ErrConcurrencyConflict so the caller re-reads.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Get(ctx context.Context, userID, quizID string) (domain.ResultRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM quiz_results WHERE user_id=$1 AND quiz_id=$2`,
		userID, quizID)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ResultRecord{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.ResultRecord{}, domain.StorageError("get result", err)
	}
	return record, nil
}

func (s *ResultStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.ResultRecord, error) {
	return s.list(ctx, "list quiz results",
		`SELECT `+recordColumns+` FROM quiz_results WHERE quiz_id=$1`, quizID)
}

func (s *ResultStore) ListByUser(ctx context.Context, userID string) ([]domain.ResultRecord, error) {
	return s.list(ctx, "list user results",
		`SELECT `+recordColumns+` FROM quiz_results WHERE user_id=$1`, userID)
}

func (s *ResultStore) Update(ctx context.Context, userID, quizID string, apply func(current *domain.ResultRecord) (domain.ResultRecord, error)) (domain.ResultRecord, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ResultRecord{}, domain.StorageError("begin result update", err)
	}
	defer tx.Rollback(ctx)

	var current *domain.ResultRecord
	row := tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM quiz_results WHERE user_id=$1 AND quiz_id=$2 FOR UPDATE`,
		userID, quizID)
	existing, err := scanRecord(row)
	switch {
	case err == nil:
		current = &existing
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return domain.ResultRecord{}, domain.StorageError("lock result", err)
	}

	next, err := apply(current)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	next.UserID = userID
	next.QuizID = quizID

	if current == nil {
		tag, err := tx.Exec(ctx,
			`INSERT INTO quiz_results (`+recordColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id, quiz_id) DO NOTHING`,
			next.UserID, next.QuizID, next.Score, next.TotalQuestions,
			next.Percentage, next.TimeSpent, next.Attempts, next.CompletedAt)
		if err != nil {
			return domain.ResultRecord{}, domain.StorageError("insert result", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ResultRecord{}, domain.ErrConcurrencyConflict
		}
	} else {
		_, err := tx.Exec(ctx,
			`UPDATE quiz_results
			 SET score=$3, total_questions=$4, percentage=$5, time_spent=$6, attempts=$7, completed_at=$8
			 WHERE user_id=$1 AND quiz_id=$2`,
			next.UserID, next.QuizID, next.Score, next.TotalQuestions,
			next.Percentage, next.TimeSpent, next.Attempts, next.CompletedAt)
		if err != nil {
			return domain.ResultRecord{}, domain.StorageError("update result", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ResultRecord{}, domain.StorageError("commit result", err)
	}
	return next, nil
}

func (s *ResultStore) Delete(ctx context.Context, userID, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_results WHERE user_id=$1 AND quiz_id=$2`, userID, quizID)
	if err != nil {
		return domain.StorageError("delete result", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

func (s *ResultStore) DeleteByQuiz(ctx context.Context, quizID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_results WHERE quiz_id=$1`, quizID)
	if err != nil {
		return 0, domain.StorageError("purge quiz results", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *ResultStore) list(ctx context.Context, op, query string, arg string) ([]domain.ResultRecord, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, domain.StorageError(op, err)
	}
	defer rows.Close()

	out := make([]domain.ResultRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, domain.StorageError(op, err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(op, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (domain.ResultRecord, error) {
	var r domain.ResultRecord
	err := row.Scan(&r.UserID, &r.QuizID, &r.Score, &r.TotalQuestions,
		&r.Percentage, &r.TimeSpent, &r.Attempts, &r.CompletedAt)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	r.CompletedAt = r.CompletedAt.UTC()
	return r, nil
}
