package app

import (
	"context"
	"sort"

	"quiz-results-service/internal/domain"
)

// Leaderboard ranks every user's best result on a quiz. It is recomputed from the
// store on each call.
func (s *ResultService) Leaderboard(ctx context.Context, quizID string, limit int) (domain.Leaderboard, error) {
	if quizID == "" {
		return domain.Leaderboard{}, domain.InvalidArgument("quiz id is required")
	}
	records, err := s.records.ListByQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	lb := domain.Leaderboard{
		QuizID:      quizID,
		Entries:     []domain.LeaderboardEntry{},
		GeneratedAt: s.now(),
	}
	if len(records) == 0 {
		return lb, nil
	}

	names, err := s.resolveUsernames(ctx, records)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(records))
	for _, r := range records {
		username := names[r.UserID]
		if username == "" {
			username = r.UserID
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      r.UserID,
			Username:    username,
			Score:       r.Score,
			Percentage:  r.Percentage,
			TimeSpent:   r.TimeSpent,
			CompletedAt: r.CompletedAt,
		})
	}
	rankEntries(entries)

	if n := s.NormalizeLimit(limit); len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	lb.Entries = entries
	return lb, nil
}

// NormalizeLimit maps a non-positive limit to the default leaderboard size.
func (s *ResultService) NormalizeLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	return limit
}

// rankEntries orders by score desc, then time asc. Username and user id settle
// remaining ties so repeated calls on unchanged data agree.
func rankEntries(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeSpent != b.TimeSpent {
			return a.TimeSpent < b.TimeSpent
		}
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.UserID < b.UserID
	})
}

func (s *ResultService) resolveUsernames(ctx context.Context, records []domain.ResultRecord) (map[string]string, error) {
	if s.users == nil {
		return map[string]string{}, nil
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UserID)
	}
	return s.users.Usernames(ctx, ids)
}
