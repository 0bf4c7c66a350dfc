package app

import (
	"fmt"
	"math"

	"quiz-results-service/internal/domain"
)

// ScoreAnswers grades answers against the quiz's answer key position by position.
// Missing or nil answers count as incorrect; extra answers are ignored.
func ScoreAnswers(answerKey []int, answers []*int) domain.Score {
	correct := 0
	for i, want := range answerKey {
		if i >= len(answers) {
			break
		}
		if answers[i] != nil && *answers[i] == want {
			correct++
		}
	}
	total := len(answerKey)
	return domain.Score{
		Correct:    correct,
		Total:      total,
		Percentage: Percentage(correct, total),
	}
}

// Percentage is correct/total as a whole percent, rounding halves up.
// An empty quiz scores 0.
func Percentage(correct, total int) int {
	if total < 0 {
		panic(fmt.Sprintf("scoring: negative question count %d", total))
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
