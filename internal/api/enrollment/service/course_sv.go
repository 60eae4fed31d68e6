package enrollmentService

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
)

func (s *courseDomainImpl) CreateCourse(ctx context.Context, req enrollment.CreateCourseRequest) (*enrollment.CourseResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	courseID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return nil, err
	}

	course := entity.Course{
		ID:   courseID,
		Code: req.Code,
		Name: req.Name,
	}

	if err := repo.Courses.CreateCourse(ctx, course); err != nil {
		return nil, err
	}

	return &enrollment.CourseResponse{
		ID:        courseID,
		Code:      req.Code,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}, nil
}

func (s *courseDomainImpl) GetRoster(ctx context.Context, courseID string) (*enrollment.RosterResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	if _, err := repo.Courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}

	students, err := repo.Students.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	roster := &enrollment.RosterResponse{
		CourseID: courseID,
		Students: make([]enrollment.StudentResponse, 0, len(students)),
	}

	for _, student := range students {
		roster.Students = append(roster.Students, enrollment.StudentResponse{
			ID:            student.ID,
			CourseID:      student.CourseID,
			Name:          student.Name,
			StudentNumber: student.StudentNumber,
			PhotoURL:      student.PhotoURL,
			CreatedAt:     student.CreatedAt,
		})
	}

	return roster, nil
}
