package entity

import "time"

type Student struct {
	ID            string
	CourseID      string
	Name          string
	StudentNumber string
	PhotoURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Course struct {
	ID        string
	Code      string
	Name      string
	CreatedAt time.Time
}

// StudentFace is one reference embedding for a student. A student keeps one
// face row per enrollment photo; the schema allows several so multi-shot
// enrollment can land later without a migration.
type StudentFace struct {
	ID             string
	StudentID      string
	Embedding      Embedding
	SourcePhotoURL string
	CreatedAt      time.Time
}
