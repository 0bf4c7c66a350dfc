package app

import (
	"context"
	"math"

	"quiz-results-service/internal/domain"
)

// Stats aggregates a user's result records. Time spent sums each quiz's best
// attempt only, not every attempt.
func (s *ResultService) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	if userID == "" {
		return domain.Stats{}, domain.InvalidArgument("user id is required")
	}
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	return computeStats(records), nil
}

func computeStats(records []domain.ResultRecord) domain.Stats {
	var stats domain.Stats
	percentageSum := 0
	for _, r := range records {
		stats.TotalQuizzes++
		stats.TotalAttempts += r.Attempts
		stats.TotalTimeSpent += r.TimeSpent
		percentageSum += r.Percentage
		if r.Percentage == 100 {
			stats.PerfectScores++
		}
	}
	if stats.TotalQuizzes > 0 {
		stats.AverageScore = int(math.Round(float64(percentageSum) / float64(stats.TotalQuizzes)))
	}
	return stats
}
