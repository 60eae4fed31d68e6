package attendanceRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
)

type AttendanceRecordDB struct {
	ID             sql.NullString  `db:"id"`
	StudentID      sql.NullString  `db:"student_id"`
	CourseID       sql.NullString  `db:"course_id"`
	Status         sql.NullString  `db:"status"`
	AttendanceDate sql.NullString  `db:"attendance_date"`
	Distance       sql.NullFloat64 `db:"distance"`
	RecordedAt     sql.NullTime    `db:"recorded_at"`
}

func (r AttendanceRecordDB) toEntity() entity.AttendanceRecord {
	return entity.AttendanceRecord{
		ID:             r.ID.String,
		StudentID:      r.StudentID.String,
		CourseID:       r.CourseID.String,
		Status:         entity.ParseAttendanceStatus(r.Status.String),
		AttendanceDate: r.AttendanceDate.String,
		Distance:       r.Distance.Float64,
		RecordedAt:     r.RecordedAt.Time,
	}
}

func (r *recordRepository) CreateRecord(c context.Context, record entity.AttendanceRecord) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":              record.ID,
		"student_id":      record.StudentID,
		"course_id":       record.CourseID,
		"status":          record.Status.String(),
		"attendance_date": record.AttendanceDate,
		"distance":        record.Distance,
		"recorded_at":     time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateRecord, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateRecord")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				r.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"student_id": record.StudentID,
					"course_id":  record.CourseID,
					"day":        record.AttendanceDate,
				}).Warn("Attendance record already exists for day")
				return attendance.ErrDuplicatePresent
			}
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating attendance record")

		return err
	}

	return nil
}

func (r *recordRepository) ExistsForDay(c context.Context, studentID, courseID, day string) (bool, error) {
	requestID := contextPkg.GetRequestID(c)

	argsKV := map[string]interface{}{
		"student_id":      studentID,
		"course_id":       courseID,
		"attendance_date": day,
	}

	query, args, err := sqlx.Named(queryRecordExistsForDay, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ExistsForDay named query preparation err")
		return false, err
	}

	query = r.q.Rebind(query)

	var exists bool
	if err := r.q.QueryRowxContext(c, query, args...).Scan(&exists); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when checking attendance record")
		return false, err
	}

	return exists, nil
}

func (r *recordRepository) ListByCourseDay(c context.Context, courseID, day string) ([]entity.AttendanceRecord, error) {
	return r.list(c, queryListRecordsByCourseDay, map[string]interface{}{
		"course_id":       courseID,
		"attendance_date": day,
	})
}

func (r *recordRepository) ListByCourseRange(c context.Context, courseID, from, to string) ([]entity.AttendanceRecord, error) {
	return r.list(c, queryListRecordsByCourseRange, map[string]interface{}{
		"course_id": courseID,
		"from":      from,
		"to":        to,
	})
}

func (r *recordRepository) list(c context.Context, namedQuery string, argsKV map[string]interface{}) ([]entity.AttendanceRecord, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(namedQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Record list named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	rows, err := r.q.QueryxContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing attendance records")
		return nil, err
	}
	defer rows.Close()

	var records []entity.AttendanceRecord
	for rows.Next() {
		var record AttendanceRecordDB
		if err := rows.StructScan(&record); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to scan attendance record row")
			return nil, err
		}
		records = append(records, record.toEntity())
	}

	return records, rows.Err()
}
