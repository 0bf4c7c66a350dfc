package domain

import (
	"fmt"
	"time"
)

// Question is a multiple-choice question; AnswerIndex points into Options.
type Question struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AnswerKey returns the correct option position of every question, in order.
func (q Quiz) AnswerKey() []int {
	key := make([]int, len(q.Questions))
	for i, question := range q.Questions {
		key[i] = question.AnswerIndex
	}
	return key
}

// Validate checks that every answer index is a valid option position.
func (q Quiz) Validate() error {
	for i, question := range q.Questions {
		if question.AnswerIndex < 0 || question.AnswerIndex >= len(question.Options) {
			return InvalidArgument("quiz %s question %d: answer index %d outside %d options",
				q.ID, i, question.AnswerIndex, len(question.Options))
		}
	}
	return nil
}

// Score is the outcome of grading one attempt.
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ResultRecord is the persisted per-(user, quiz) summary of the best attempt.
type ResultRecord struct {
	UserID         string    `json:"userId"`
	QuizID         string    `json:"quizId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	TimeSpent      int       `json:"timeSpent"`
	Attempts       int       `json:"attempts"`
	CompletedAt    time.Time `json:"completedAt"`
}

// RecordKey builds the canonical key for a (user, quiz) pair.
func RecordKey(userID, quizID string) string {
	return fmt.Sprintf("%s|%s", userID, quizID)
}

// ResultView is a result record as shown in a user's history, with the quiz
// title resolved. QuizTitle is empty when the quiz no longer exists.
type ResultView struct {
	ResultRecord
	QuizTitle string `json:"quizTitle"`
}

// SubmitReport summarizes how a submission affected the user's record.
type SubmitReport struct {
	Score          int  `json:"score"`
	TotalQuestions int  `json:"totalQuestions"`
	Percentage     int  `json:"percentage"`
	IsNewBest      bool `json:"isNewBest"`
	IsFirstAttempt bool `json:"isFirstAttempt"`
	CurrentAttempt int  `json:"currentAttempt"`
}

// Stats aggregates a user's result records.
type Stats struct {
	TotalQuizzes   int `json:"totalQuizzes"`
	TotalAttempts  int `json:"totalAttempts"`
	AverageScore   int `json:"averageScore"`
	TotalTimeSpent int `json:"totalTimeSpent"`
	PerfectScores  int `json:"perfectScores"`
}

// LeaderboardEntry is one user's best performance on a quiz.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Score       int       `json:"score"`
	Percentage  int       `json:"percentage"`
	TimeSpent   int       `json:"timeSpent"`
	CompletedAt time.Time `json:"completedAt"`
}

// Leaderboard captures the ordered ranking for a quiz.
type Leaderboard struct {
	QuizID      string             `json:"quizId"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generatedAt"`
}
