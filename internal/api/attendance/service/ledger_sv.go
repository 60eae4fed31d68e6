package attendanceService

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	attendanceRepository "github.com/tararauzumaki/autoattend/internal/api/attendance/repository"
	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

// HandleRecognition lets the ledger act as the recognition loop's sink.
func (l *ledgerDomainImpl) HandleRecognition(ctx context.Context, event entity.RecognitionEvent) error {
	return l.RecordPresent(ctx, event)
}

// RecordPresent appends a present record for the event's course-local day.
// A student already recorded that day is a no-op, never an error. The Redis
// marker is written only after the database row exists, so a failed write
// stays retryable.
func (l *ledgerDomainImpl) RecordPresent(ctx context.Context, event entity.RecognitionEvent) error {
	requestID := contextPkg.GetRequestID(ctx)
	day := l.utils.DayKey(event.ObservedAt)

	marked, err := l.redisServer.IsPresent(ctx, event.CourseID, event.StudentID, day)
	if err == nil && marked {
		return nil
	}

	repo, err := l.attendanceRepo.NewClient(false)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return err
	}

	exists, err := repo.Records.ExistsForDay(ctx, event.StudentID, event.CourseID, day)
	if err != nil {
		return err
	}
	if exists {
		l.markPresent(ctx, event.CourseID, event.StudentID, day)
		return nil
	}

	recordID, err := l.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return err
	}

	record := entity.AttendanceRecord{
		ID:             recordID,
		StudentID:      event.StudentID,
		CourseID:       event.CourseID,
		Status:         entity.AttendanceStatusPresent,
		AttendanceDate: day,
		Distance:       event.Distance,
	}

	if err := repo.Records.CreateRecord(ctx, record); err != nil {
		// A concurrent writer beat us to the unique index; the day is
		// recorded either way.
		if errors.Is(err, attendance.ErrDuplicatePresent) {
			l.markPresent(ctx, event.CourseID, event.StudentID, day)
			return nil
		}

		l.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"student_id": event.StudentID,
			"course_id":  event.CourseID,
			"error":      err.Error(),
		}).Error("Failed to persist attendance record")
		return err
	}

	l.markPresent(ctx, event.CourseID, event.StudentID, day)

	l.log.WithFields(log.Fields{
		"request_id": requestID,
		"student_id": event.StudentID,
		"course_id":  event.CourseID,
		"day":        day,
		"distance":   event.Distance,
	}).Info("Student marked present")

	return nil
}

func (l *ledgerDomainImpl) markPresent(ctx context.Context, courseID, studentID, day string) {
	if _, err := l.redisServer.MarkPresent(ctx, courseID, studentID, day); err != nil {
		l.log.WithFields(logrus.Fields{
			"course_id":  courseID,
			"student_id": studentID,
			"error":      err.Error(),
		}).Warn("Failed to set present marker in Redis")
	}
}

// CloseDay sweeps the roster and writes absent records for everyone without a
// row on the given day. The closure row goes to "closing" first and only
// flips to "closed" after the sweep commits, so a failed sweep can be rerun.
func (l *ledgerDomainImpl) CloseDay(ctx context.Context, courseID, day string) (*attendance.CloseSessionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := l.attendanceRepo.NewClient(false)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	closure, err := repo.Closures.GetByCourseDay(ctx, courseID, day)
	if err != nil {
		return nil, err
	}

	if closure.Status == entity.ClosureStatusClosed {
		l.log.WithFields(log.Fields{
			"request_id": requestID,
			"course_id":  courseID,
			"day":        day,
		}).Info("Day already closed, returning existing summary")
		return l.summary(ctx, repo, courseID, day, entity.ClosureStatusClosed)
	}

	closureID, err := l.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, err
	}

	if err := repo.Closures.UpsertClosing(ctx, entity.SessionClosure{
		ID:          closureID,
		CourseID:    courseID,
		ClosureDate: day,
	}); err != nil {
		return nil, err
	}

	enrollRepo, err := l.enrollmentRepo.NewClient(false)
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

	recorded := make(map[string]struct{}, len(records))
	for _, record := range records {
		recorded[record.StudentID] = struct{}{}
	}

	txRepo, err := l.attendanceRepo.NewClient(true)
	if err != nil {
		return nil, err
	}

	for _, student := range roster {
		if _, ok := recorded[student.ID]; ok {
			continue
		}

		recordID, err := l.utils.NewULIDFromTimestamp(time.Now())
		if err != nil {
			txRepo.Rollback()
			return nil, err
		}

		record := entity.AttendanceRecord{
			ID:             recordID,
			StudentID:      student.ID,
			CourseID:       courseID,
			Status:         entity.AttendanceStatusAbsent,
			AttendanceDate: day,
		}

		if err := txRepo.Records.CreateRecord(ctx, record); err != nil {
			if errors.Is(err, attendance.ErrDuplicatePresent) {
				continue
			}
			txRepo.Rollback()
			l.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"course_id":  courseID,
				"student_id": student.ID,
				"error":      err.Error(),
			}).Error("Absentee sweep failed, closure stays retryable")
			return nil, err
		}
	}

	if err := txRepo.Commit(); err != nil {
		return nil, err
	}

	if err := repo.Closures.MarkClosed(ctx, courseID, day); err != nil {
		return nil, err
	}

	l.log.WithFields(log.Fields{
		"request_id": requestID,
		"course_id":  courseID,
		"day":        day,
		"roster":     len(roster),
	}).Info("Day closed")

	return l.summary(ctx, repo, courseID, day, entity.ClosureStatusClosed)
}

func (l *ledgerDomainImpl) summary(ctx context.Context, repo attendanceRepository.Client, courseID, day string, status entity.ClosureStatus) (*attendance.CloseSessionResponse, error) {
	records, err := repo.Records.ListByCourseDay(ctx, courseID, day)
	if err != nil {
		return nil, err
	}

	resp := &attendance.CloseSessionResponse{
		CourseID: courseID,
		Date:     day,
		Status:   status.String(),
	}

	for _, record := range records {
		switch record.Status {
		case entity.AttendanceStatusPresent:
			resp.Present++
		case entity.AttendanceStatusAbsent:
			resp.Absent++
		}
	}

	return resp, nil
}
