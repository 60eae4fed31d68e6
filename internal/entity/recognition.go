package entity

import "time"

// RecognitionEvent is the outcome of matching one detected face against the
// session gallery. It is ephemeral; only its effect on the ledger persists.
type RecognitionEvent struct {
	SessionID  string    `json:"session_id"`
	CourseID   string    `json:"course_id"`
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name"`
	Distance   float64   `json:"distance"`
	ObservedAt time.Time `json:"observed_at"`
}
