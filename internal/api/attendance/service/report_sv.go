package attendanceService

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
)

func (r *reportDomainImpl) RecordsByRange(ctx context.Context, courseID, from, to string) (*attendance.RecordQueryResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := validateDateRange(from, to); err != nil {
		return nil, err
	}

	repo, err := r.attendanceRepo.NewClient(false)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	names, err := r.studentNames(ctx, courseID)
	if err != nil {
		return nil, err
	}

	records, err := repo.Records.ListByCourseRange(ctx, courseID, from, to)
	if err != nil {
		return nil, err
	}

	resp := &attendance.RecordQueryResponse{
		CourseID: courseID,
		From:     from,
		To:       to,
		Records:  make([]attendance.RecordResponse, 0, len(records)),
	}

	for _, record := range records {
		resp.Records = append(resp.Records, attendance.RecordResponse{
			ID:             record.ID,
			StudentID:      record.StudentID,
			StudentName:    names[record.StudentID],
			CourseID:       record.CourseID,
			Status:         record.Status.String(),
			AttendanceDate: record.AttendanceDate,
			Distance:       record.Distance,
			RecordedAt:     record.RecordedAt,
		})
	}

	return resp, nil
}

// DayStatus derives a display status per roster member: a record decides
// present or absent, no record means the day is still pending.
func (r *reportDomainImpl) DayStatus(ctx context.Context, courseID, day string) (*attendance.DayStatusResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := validateDay(day); err != nil {
		return nil, err
	}

	repo, err := r.attendanceRepo.NewClient(false)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	enrollRepo, err := r.enrollmentRepo.NewClient(false)
	if err != nil {
		return nil, err
	}

	roster, err := enrollRepo.Students.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	records, err := repo.Records.ListByCourseDay(ctx, courseID, day)
	if err != nil {
		return nil, err
	}

	statusByStudent := make(map[string]entity.AttendanceStatus, len(records))
	for _, record := range records {
		statusByStudent[record.StudentID] = record.Status
	}

	resp := &attendance.DayStatusResponse{
		CourseID: courseID,
		Date:     day,
		Students: make([]attendance.StudentStatus, 0, len(roster)),
	}

	for _, student := range roster {
		status := "pending"
		if s, ok := statusByStudent[student.ID]; ok {
			status = s.String()
		}

		resp.Students = append(resp.Students, attendance.StudentStatus{
			StudentID: student.ID,
			Name:      student.Name,
			Status:    status,
		})
	}

	return resp, nil
}

func (r *reportDomainImpl) studentNames(ctx context.Context, courseID string) (map[string]string, error) {
	enrollRepo, err := r.enrollmentRepo.NewClient(false)
	if err != nil {
		return nil, err
	}

	roster, err := enrollRepo.Students.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(roster))
	for _, student := range roster {
		names[student.ID] = student.Name
	}
	return names, nil
}

func validateDateRange(from, to string) error {
	fromDay, err := time.Parse("2006-01-02", from)
	if err != nil {
		return attendance.ErrInvalidDateRange
	}

	toDay, err := time.Parse("2006-01-02", to)
	if err != nil {
		return attendance.ErrInvalidDateRange
	}

	if toDay.Before(fromDay) {
		return attendance.ErrInvalidDateRange
	}

	return nil
}

func validateDay(day string) error {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return attendance.ErrInvalidDateRange
	}
	return nil
}
