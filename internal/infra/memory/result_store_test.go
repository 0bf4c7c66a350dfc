package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-results-service/internal/domain"
)

func TestResultStoreUpdateCreatesThenMutates(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	_, err := store.Get(ctx, "u1", "quiz-1")
	if !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}

	increment := func(current *domain.ResultRecord) (domain.ResultRecord, error) {
		if current == nil {
			return domain.ResultRecord{Attempts: 1}, nil
		}
		next := *current
		next.Attempts++
		return next, nil
	}

	if _, err := store.Update(ctx, "u1", "quiz-1", increment); err != nil {
		t.Fatalf("first update: %v", err)
	}
	rec, err := store.Update(ctx, "u1", "quiz-1", increment)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if rec.Attempts != 2 || rec.UserID != "u1" || rec.QuizID != "quiz-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestResultStoreUpdateErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	boom := errors.New("boom")

	_, err := store.Update(ctx, "u1", "quiz-1", func(*domain.ResultRecord) (domain.ResultRecord, error) {
		return domain.ResultRecord{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected apply error, got %v", err)
	}
	if _, err := store.Get(ctx, "u1", "quiz-1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected nothing written, got %v", err)
	}
}

func TestResultStoreConcurrentUpdatesSameKey(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, "u1", "quiz-1", func(current *domain.ResultRecord) (domain.ResultRecord, error) {
				if current == nil {
					return domain.ResultRecord{Attempts: 1}, nil
				}
				next := *current
				next.Attempts++
				return next, nil
			})
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Attempts != 100 {
		t.Fatalf("expected 100 attempts, got %d", rec.Attempts)
	}
}

func TestResultStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	seed := func(userID, quizID string) {
		t.Helper()
		if _, err := store.Update(ctx, userID, quizID, func(*domain.ResultRecord) (domain.ResultRecord, error) {
			return domain.ResultRecord{Attempts: 1}, nil
		}); err != nil {
			t.Fatalf("seed %s/%s: %v", userID, quizID, err)
		}
	}
	seed("u1", "quiz-1")
	seed("u2", "quiz-1")
	seed("u1", "quiz-2")

	byQuiz, _ := store.ListByQuiz(ctx, "quiz-1")
	if len(byQuiz) != 2 {
		t.Fatalf("expected 2 records for quiz-1, got %d", len(byQuiz))
	}
	byUser, _ := store.ListByUser(ctx, "u1")
	if len(byUser) != 2 {
		t.Fatalf("expected 2 records for u1, got %d", len(byUser))
	}

	if err := store.Delete(ctx, "u1", "quiz-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "u1", "quiz-2"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	removed, err := store.DeleteByQuiz(ctx, "quiz-1")
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d (%v)", removed, err)
	}
	if left, _ := store.ListByUser(ctx, "u1"); len(left) != 0 {
		t.Fatalf("expected no records left, got %+v", left)
	}
}

func TestDeleteByQuizWaitsForInFlightUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()
	if _, err := store.Update(ctx, "u1", "quiz-1", func(*domain.ResultRecord) (domain.ResultRecord, error) {
		return domain.ResultRecord{Score: 3, Attempts: 1}, nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	updateDone := make(chan error, 1)
	go func() {
		_, err := store.Update(ctx, "u1", "quiz-1", func(current *domain.ResultRecord) (domain.ResultRecord, error) {
			close(entered)
			<-release
			next := *current
			next.Attempts++
			return next, nil
		})
		updateDone <- err
	}()
	<-entered

	type purgeResult struct {
		removed int
		err     error
	}
	purgeDone := make(chan purgeResult, 1)
	go func() {
		removed, err := store.DeleteByQuiz(ctx, "quiz-1")
		purgeDone <- purgeResult{removed, err}
	}()

	select {
	case <-purgeDone:
		t.Fatalf("purge finished while an update held the record")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-updateDone; err != nil {
		t.Fatalf("update: %v", err)
	}
	res := <-purgeDone
	if res.err != nil || res.removed != 1 {
		t.Fatalf("expected 1 removed, got %d (%v)", res.removed, res.err)
	}
	if rec, err := store.Get(ctx, "u1", "quiz-1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected purged record to stay gone, got %+v (%v)", rec, err)
	}
}

func TestUserDirectoryUsernames(t *testing.T) {
	dir := NewUserDirectory(map[string]string{"u1": "alice"})
	if err := dir.Register(context.Background(), "u2", "bob"); err != nil {
		t.Fatalf("register: %v", err)
	}

	names, err := dir.Usernames(context.Background(), []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("usernames: %v", err)
	}
	if names["u1"] != "alice" || names["u2"] != "bob" {
		t.Fatalf("unexpected names %v", names)
	}
	if _, ok := names["u3"]; ok {
		t.Fatalf("expected unknown user to be absent")
	}
}
