package memory

import (
	"context"
	"sync"

	"quiz-results-service/internal/domain"
	"quiz-results-service/internal/infra/keylock"
)

// ResultStore is an in-memory implementation of app.RecordStore.
// Updates for one (user, quiz) key are serialized by a per-key lock; the map
// lock is held only to copy records in or out, so readers never see a record
// half-written and never wait on a slow update.
type ResultStore struct {
	keys *keylock.Map

	mu      sync.RWMutex
	records map[string]domain.ResultRecord
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		keys:    keylock.New(),
		records: make(map[string]domain.ResultRecord),
	}
}

func (s *ResultStore) Get(_ context.Context, userID, quizID string) (domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[domain.RecordKey(userID, quizID)]
	if !ok {
		return domain.ResultRecord{}, domain.ErrResultNotFound
	}
	return record, nil
}

func (s *ResultStore) ListByQuiz(_ context.Context, quizID string) ([]domain.ResultRecord, error) {
	return s.filter(func(r domain.ResultRecord) bool { return r.QuizID == quizID }), nil
}

func (s *ResultStore) ListByUser(_ context.Context, userID string) ([]domain.ResultRecord, error) {
	return s.filter(func(r domain.ResultRecord) bool { return r.UserID == userID }), nil
}

func (s *ResultStore) Update(ctx context.Context, userID, quizID string, apply func(current *domain.ResultRecord) (domain.ResultRecord, error)) (domain.ResultRecord, error) {
	key := domain.RecordKey(userID, quizID)
	unlock := s.keys.Lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return domain.ResultRecord{}, err
	}

	s.mu.RLock()
	current, ok := s.records[key]
	s.mu.RUnlock()

	var currentPtr *domain.ResultRecord
	if ok {
		currentPtr = &current
	}
	next, err := apply(currentPtr)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	next.UserID = userID
	next.QuizID = quizID

	s.mu.Lock()
	s.records[key] = next
	s.mu.Unlock()
	return next, nil
}

func (s *ResultStore) Delete(_ context.Context, userID, quizID string) error {
	key := domain.RecordKey(userID, quizID)
	unlock := s.keys.Lock(key)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return domain.ErrResultNotFound
	}
	delete(s.records, key)
	return nil
}

// DeleteByQuiz takes each record's key lock like Delete does, so an update
// already running for that key finishes first and its write is removed too.
func (s *ResultStore) DeleteByQuiz(_ context.Context, quizID string) (int, error) {
	s.mu.RLock()
	keys := make([]string, 0)
	for key, record := range s.records {
		if record.QuizID == quizID {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, key := range keys {
		unlock := s.keys.Lock(key)
		s.mu.Lock()
		if _, ok := s.records[key]; ok {
			delete(s.records, key)
			removed++
		}
		s.mu.Unlock()
		unlock()
	}
	return removed, nil
}

func (s *ResultStore) filter(keep func(domain.ResultRecord) bool) []domain.ResultRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ResultRecord, 0)
	for _, record := range s.records {
		if keep(record) {
			out = append(out, record)
		}
	}
	return out
}
