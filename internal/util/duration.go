package util

import (
	"fmt"
	"time"
)

// MinutesPerQuestion is the planning estimate used for conversation length.
const MinutesPerQuestion = 2

// EstimateConversationDuration estimates how long answering n questions takes.
func EstimateConversationDuration(questionCount int) time.Duration {
	if questionCount < 0 {
		questionCount = 0
	}
	return time.Duration(questionCount*MinutesPerQuestion) * time.Minute
}

// FormatDuration renders a duration as "Hh Mm", or "Mm" when under an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Minute) / time.Minute)
	hours := total / 60
	minutes := total % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
