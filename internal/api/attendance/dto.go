package attendance

import "time"

type StartSessionRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

type SessionResponse struct {
	ID              string            `json:"id"`
	CourseID        string            `json:"course_id"`
	State           string            `json:"state"`
	GallerySize     int               `json:"gallery_size"`
	Identities      int               `json:"identities"`
	Excluded        []ExcludedStudent `json:"excluded,omitempty"`
	RecognizedCount int               `json:"recognized_count"`
	StartedAt       time.Time         `json:"started_at"`
}

type ExcludedStudent struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
}

type RecordResponse struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	StudentName    string    `json:"student_name,omitempty"`
	CourseID       string    `json:"course_id"`
	Status         string    `json:"status"`
	AttendanceDate string    `json:"attendance_date"`
	Distance       float64   `json:"distance,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

type RecordQueryResponse struct {
	CourseID string           `json:"course_id"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Records  []RecordResponse `json:"records"`
}

type DayStatusResponse struct {
	CourseID string          `json:"course_id"`
	Date     string          `json:"date"`
	Students []StudentStatus `json:"students"`
}

type StudentStatus struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
}

type CloseDayRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
}

type CloseSessionResponse struct {
	CourseID string `json:"course_id"`
	Date     string `json:"date"`
	Present  int    `json:"present"`
	Absent   int    `json:"absent"`
	Status   string `json:"status"`
}
