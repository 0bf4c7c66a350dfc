package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"quiz-results-service/internal/domain"
	"quiz-results-service/internal/logger"
)

// RecordStore abstracts where result records live (in-memory, Redis, Postgres).
//
// Update must run apply at most once per successful call while holding
// exclusive ownership of the (user, quiz) key: no other Update for that key may
// interleave between the read handed to apply and the write of its result.
// apply receives nil when no record exists. Stores built on optimistic
// concurrency return domain.ErrConcurrencyConflict when the write lost a race;
// callers may re-run the whole Update.
type RecordStore interface {
	Get(ctx context.Context, userID, quizID string) (domain.ResultRecord, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.ResultRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ResultRecord, error)
	Update(ctx context.Context, userID, quizID string, apply func(current *domain.ResultRecord) (domain.ResultRecord, error)) (domain.ResultRecord, error)
	Delete(ctx context.Context, userID, quizID string) error
	DeleteByQuiz(ctx context.Context, quizID string) (int, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizInvalidator is implemented by quiz repositories that cache content.
type QuizInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// UserDirectory resolves display usernames for leaderboard entries.
// Unknown ids are simply absent from the returned map.
type UserDirectory interface {
	Usernames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// UserRegistrar is implemented by directories that accept new or renamed users.
type UserRegistrar interface {
	Register(ctx context.Context, userID, username string) error
}

// Metrics receives aggregation events.
type Metrics interface {
	ObserveSubmission(outcome string)
	ObserveConflict()
}

const (
	DefaultLeaderboardLimit = 10
	DefaultMaxRetries       = 3
)

// ResultService contains the result aggregation, statistics and ranking use cases.
type ResultService struct {
	records      RecordStore
	quizzes      QuizRepository
	users        UserDirectory
	now          func() time.Time
	log          *logger.Logger
	metrics      Metrics
	maxRetries   int
	defaultLimit int
}

// Option customizes a ResultService.
type Option func(*ResultService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ResultService) { s.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *ResultService) { s.log = log }
}

func WithMetrics(m Metrics) Option {
	return func(s *ResultService) { s.metrics = m }
}

// WithMaxRetries bounds how many times a conflicting update is re-run.
func WithMaxRetries(n int) Option {
	return func(s *ResultService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithDefaultLimit sets the leaderboard size used when the caller gives none.
func WithDefaultLimit(n int) Option {
	return func(s *ResultService) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

func NewResultService(records RecordStore, quizzes QuizRepository, users UserDirectory, opts ...Option) *ResultService {
	s := &ResultService{
		records:      records,
		quizzes:      quizzes,
		users:        users,
		now:          time.Now,
		log:          logger.Nop(),
		metrics:      nopMetrics{},
		maxRetries:   DefaultMaxRetries,
		defaultLimit: DefaultLeaderboardLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserResults lists every result record of a user, most recent completion first.
func (s *ResultService) UserResults(ctx context.Context, userID string) ([]domain.ResultView, error) {
	if userID == "" {
		return nil, domain.InvalidArgument("user id is required")
	}
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CompletedAt.Equal(records[j].CompletedAt) {
			return records[i].CompletedAt.After(records[j].CompletedAt)
		}
		return records[i].QuizID < records[j].QuizID
	})

	views := make([]domain.ResultView, 0, len(records))
	for _, r := range records {
		view, err := s.view(ctx, r)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// QuizResult returns the user's record for one quiz or domain.ErrResultNotFound.
func (s *ResultService) QuizResult(ctx context.Context, userID, quizID string) (domain.ResultView, error) {
	if userID == "" || quizID == "" {
		return domain.ResultView{}, domain.InvalidArgument("user id and quiz id are required")
	}
	record, err := s.records.Get(ctx, userID, quizID)
	if err != nil {
		return domain.ResultView{}, err
	}
	return s.view(ctx, record)
}

// view attaches the quiz title. A quiz that has since been removed leaves the title empty.
func (s *ResultService) view(ctx context.Context, r domain.ResultRecord) (domain.ResultView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, r.QuizID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.ResultView{}, err
	}
	return domain.ResultView{ResultRecord: r, QuizTitle: quiz.Title}, nil
}

// RegisterUsername records the display name shown for userID on leaderboards.
// It is a no-op for an empty name or a read-only directory.
func (s *ResultService) RegisterUsername(ctx context.Context, userID, username string) error {
	if userID == "" {
		return domain.InvalidArgument("user id is required")
	}
	username = strings.TrimSpace(username)
	registrar, ok := s.users.(UserRegistrar)
	if username == "" || !ok {
		return nil
	}
	return registrar.Register(ctx, userID, username)
}

// DeleteResult removes the user's record for one quiz.
func (s *ResultService) DeleteResult(ctx context.Context, userID, quizID string) error {
	if userID == "" || quizID == "" {
		return domain.InvalidArgument("user id and quiz id are required")
	}
	if err := s.records.Delete(ctx, userID, quizID); err != nil {
		return err
	}
	s.log.Info("result deleted", "userId", userID, "quizId", quizID)
	return nil
}

// PurgeQuizResults removes every user's record for a quiz, e.g. when the quiz is retired.
func (s *ResultService) PurgeQuizResults(ctx context.Context, quizID string) (int, error) {
	if quizID == "" {
		return 0, domain.InvalidArgument("quiz id is required")
	}
	removed, err := s.records.DeleteByQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	if inv, ok := s.quizzes.(QuizInvalidator); ok {
		if err := inv.Invalidate(ctx, quizID); err != nil {
			s.log.Warn("quiz cache invalidation failed", "quizId", quizID, "error", err)
		}
	}
	s.log.Info("quiz results purged", "quizId", quizID, "removed", removed)
	return removed, nil
}

type nopMetrics struct{}

func (nopMetrics) ObserveSubmission(string) {}
func (nopMetrics) ObserveConflict()         {}
