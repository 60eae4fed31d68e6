package enrollmentRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
)

type StudentDB struct {
	ID            sql.NullString `db:"id"`
	CourseID      sql.NullString `db:"course_id"`
	Name          sql.NullString `db:"name"`
	StudentNumber sql.NullString `db:"student_number"`
	PhotoURL      sql.NullString `db:"photo_url"`
	CreatedAt     sql.NullTime   `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

func (s StudentDB) toEntity() entity.Student {
	return entity.Student{
		ID:            s.ID.String,
		CourseID:      s.CourseID.String,
		Name:          s.Name.String,
		StudentNumber: s.StudentNumber.String,
		PhotoURL:      s.PhotoURL.String,
		CreatedAt:     s.CreatedAt.Time,
		UpdatedAt:     s.UpdatedAt.Time,
	}
}

func (r *studentRepository) CreateStudent(c context.Context, student entity.Student) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":             student.ID,
		"course_id":      student.CourseID,
		"name":           student.Name,
		"student_number": student.StudentNumber,
		"photo_url":      student.PhotoURL,
		"created_at":     time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateStudent, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateStudent")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "students_course_id_student_number_key" {
					r.log.WithFields(logrus.Fields{
						"request_id": requestID,
						"error":      err.Error(),
					}).Warn("Student number already exists in course")
					return enrollment.ErrStudentNumberAlreadyExists
				}
			case "23503":
				r.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"error":      err.Error(),
				}).Warn("Course does not exist")
				return enrollment.ErrCourseNotFound
			}
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating student")

		return err
	}

	return nil
}

func (r *studentRepository) GetByID(c context.Context, id string) (entity.Student, error) {
	requestID := contextPkg.GetRequestID(c)
	var student StudentDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetStudentById, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetByID named query preparation err")

		return entity.Student{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("GetByID no rows found")
			return entity.Student{}, enrollment.ErrStudentNotFound
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when getting student by ID")

		return entity.Student{}, err
	}

	return student.toEntity(), nil
}

func (r *studentRepository) ListByCourse(c context.Context, courseID string) ([]entity.Student, error) {
	requestID := contextPkg.GetRequestID(c)

	argsKV := map[string]interface{}{
		"course_id": courseID,
	}

	query, args, err := sqlx.Named(queryListStudentsByCourse, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListByCourse named query preparation err")

		return nil, err
	}

	query = r.q.Rebind(query)

	rows, err := r.q.QueryxContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing students by course")

		return nil, err
	}
	defer rows.Close()

	var students []entity.Student
	for rows.Next() {
		var student StudentDB
		if err := rows.StructScan(&student); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to scan student row")
			return nil, err
		}
		students = append(students, student.toEntity())
	}

	return students, rows.Err()
}

func (r *studentRepository) UpdatePhotoURL(c context.Context, id string, photoURL string) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":         id,
		"photo_url":  photoURL,
		"updated_at": time.Now(),
	}

	query, args, err := sqlx.Named(queryUpdateStudentPhoto, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpdatePhotoURL named query preparation err")
		return err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when updating student photo")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return enrollment.ErrStudentNotFound
	}

	return nil
}

func (r *studentRepository) DeleteStudent(c context.Context, id string) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryDeleteStudent, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteStudent named query preparation err")
		return err
	}

	query = r.q.Rebind(query)

	result, err := r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when deleting student")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return enrollment.ErrStudentNotFound
	}

	return nil
}
