package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-results-service/internal/domain"
)

const (
	outcomeFirst       = "first"
	outcomeNewBest     = "new_best"
	outcomeNotImproved = "not_improved"
)

// SubmitAttempt grades the answers against the quiz's answer key and records the result.
func (s *ResultService) SubmitAttempt(ctx context.Context, userID, quizID string, answers []*int, timeSpent int) (domain.SubmitReport, error) {
	if answers == nil {
		return domain.SubmitReport{}, domain.InvalidArgument("answers are required")
	}
	if err := validateIDs(userID, quizID); err != nil {
		return domain.SubmitReport{}, err
	}
	if timeSpent < 0 {
		return domain.SubmitReport{}, domain.InvalidArgument("time spent %d is negative", timeSpent)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SubmitReport{}, err
	}
	score := ScoreAnswers(quiz.AnswerKey(), answers)
	return s.record(ctx, userID, quizID, score, timeSpent)
}

// SubmitResult records an already-graded attempt and applies the best-score policy:
// the attempt counter always grows, best fields change only on a strictly higher score.
func (s *ResultService) SubmitResult(ctx context.Context, userID, quizID string, correct, total, percentage, timeSpent int) (domain.SubmitReport, error) {
	if err := validateIDs(userID, quizID); err != nil {
		return domain.SubmitReport{}, err
	}
	score := domain.Score{Correct: correct, Total: total, Percentage: percentage}
	if err := validateScore(score, timeSpent); err != nil {
		return domain.SubmitReport{}, err
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.SubmitReport{}, err
	}
	return s.record(ctx, userID, quizID, score, timeSpent)
}

func (s *ResultService) record(ctx context.Context, userID, quizID string, score domain.Score, timeSpent int) (domain.SubmitReport, error) {
	var report domain.SubmitReport
	apply := func(current *domain.ResultRecord) (domain.ResultRecord, error) {
		var next domain.ResultRecord
		next, report = applyAttempt(current, userID, quizID, score, timeSpent, s.now())
		return next, nil
	}

	if _, err := s.updateWithRetry(ctx, userID, quizID, apply); err != nil {
		return domain.SubmitReport{}, err
	}

	switch {
	case report.IsFirstAttempt:
		s.metrics.ObserveSubmission(outcomeFirst)
	case report.IsNewBest:
		s.metrics.ObserveSubmission(outcomeNewBest)
	default:
		s.metrics.ObserveSubmission(outcomeNotImproved)
	}
	s.log.Debug("result recorded",
		"userId", userID,
		"quizId", quizID,
		"score", score.Correct,
		"attempt", report.CurrentAttempt,
		"newBest", report.IsNewBest,
	)
	return report, nil
}

// applyAttempt computes the record that follows current after one attempt.
func applyAttempt(current *domain.ResultRecord, userID, quizID string, score domain.Score, timeSpent int, now time.Time) (domain.ResultRecord, domain.SubmitReport) {
	report := domain.SubmitReport{
		Score:          score.Correct,
		TotalQuestions: score.Total,
		Percentage:     score.Percentage,
	}

	if current == nil {
		report.IsFirstAttempt = true
		report.IsNewBest = true
		report.CurrentAttempt = 1
		return domain.ResultRecord{
			UserID:         userID,
			QuizID:         quizID,
			Score:          score.Correct,
			TotalQuestions: score.Total,
			Percentage:     score.Percentage,
			TimeSpent:      timeSpent,
			Attempts:       1,
			CompletedAt:    now,
		}, report
	}

	next := *current
	next.Attempts++
	next.CompletedAt = now
	// Ties keep the earlier best.
	if score.Correct > current.Score {
		next.Score = score.Correct
		next.TotalQuestions = score.Total
		next.Percentage = score.Percentage
		next.TimeSpent = timeSpent
		report.IsNewBest = true
	}
	report.CurrentAttempt = next.Attempts
	return next, report
}

func (s *ResultService) updateWithRetry(ctx context.Context, userID, quizID string, apply func(*domain.ResultRecord) (domain.ResultRecord, error)) (domain.ResultRecord, error) {
	for attempt := 0; ; attempt++ {
		record, err := s.records.Update(ctx, userID, quizID, apply)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return domain.ResultRecord{}, err
		}

		s.metrics.ObserveConflict()
		if attempt >= s.maxRetries {
			s.log.Warn("result update retries exhausted", "userId", userID, "quizId", quizID, "attempts", attempt+1)
			return domain.ResultRecord{}, fmt.Errorf("update result for user %s quiz %s after %d attempts: %w",
				userID, quizID, attempt+1, domain.ErrStorageUnavailable)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ResultRecord{}, ctxErr
		}
		s.log.Debug("result update conflict, retrying", "userId", userID, "quizId", quizID, "attempt", attempt+1)
	}
}

func validateIDs(userID, quizID string) error {
	if userID == "" {
		return domain.InvalidArgument("user id is required")
	}
	if quizID == "" {
		return domain.InvalidArgument("quiz id is required")
	}
	return nil
}

func validateScore(score domain.Score, timeSpent int) error {
	switch {
	case score.Correct < 0:
		return domain.InvalidArgument("correct count %d is negative", score.Correct)
	case score.Total < 0:
		return domain.InvalidArgument("question count %d is negative", score.Total)
	case score.Correct > score.Total:
		return domain.InvalidArgument("correct count %d exceeds question count %d", score.Correct, score.Total)
	case score.Percentage < 0 || score.Percentage > 100:
		return domain.InvalidArgument("percentage %d outside 0..100", score.Percentage)
	case timeSpent < 0:
		return domain.InvalidArgument("time spent %d is negative", timeSpent)
	}
	return nil
}
