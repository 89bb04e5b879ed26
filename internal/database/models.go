package database

import "time"

// Feedback values recorded from the inline answer buttons.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// Feedback is one thumbs up or down on a bot answer.
type Feedback struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	UserName        string    `db:"user_name"`
	Query           string    `db:"query"`
	ResponsePreview string    `db:"response_preview"`
	Value           string    `db:"value"`
	CreatedAt       time.Time `db:"created_at"`
}

// FeedbackStats counts recorded feedback.
type FeedbackStats struct {
	Positive int `db:"positive"`
	Negative int `db:"negative"`
}

// Total returns the number of feedback entries.
func (s FeedbackStats) Total() int {
	return s.Positive + s.Negative
}
