package enrollment

import "time"

type RegisterStudentRequest struct {
	CourseID      string `form:"course_id" validate:"required"`
	Name          string `form:"name" validate:"required,min=3,max=255"`
	StudentNumber string `form:"student_number" validate:"required,min=4,max=32"`
}

type StudentResponse struct {
	ID            string    `json:"id"`
	CourseID      string    `json:"course_id"`
	Name          string    `json:"name"`
	StudentNumber string    `json:"student_number"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	FaceCount     int       `json:"face_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateCourseRequest struct {
	Code string `json:"code" validate:"required,min=2,max=32"`
	Name string `json:"name" validate:"required,min=3,max=255"`
}

type CourseResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type RosterResponse struct {
	CourseID string            `json:"course_id"`
	Students []StudentResponse `json:"students"`
}
