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

type CourseDB struct {
	ID        sql.NullString `db:"id"`
	Code      sql.NullString `db:"code"`
	Name      sql.NullString `db:"name"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

func (c CourseDB) toEntity() entity.Course {
	return entity.Course{
		ID:        c.ID.String,
		Code:      c.Code.String,
		Name:      c.Name.String,
		CreatedAt: c.CreatedAt.Time,
	}
}

func (r *courseRepository) CreateCourse(c context.Context, course entity.Course) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":         course.ID,
		"code":       course.Code,
		"name":       course.Name,
		"created_at": time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateCourse, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateCourse")
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
					"error":      err.Error(),
				}).Warn("Course code already exists")
				return enrollment.ErrCourseCodeAlreadyExists
			}
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating course")

		return err
	}

	return nil
}

func (r *courseRepository) GetByID(c context.Context, id string) (entity.Course, error) {
	requestID := contextPkg.GetRequestID(c)
	var course CourseDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetCourseById, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetByID named query preparation err")

		return entity.Course{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Course not found")
			return entity.Course{}, enrollment.ErrCourseNotFound
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when getting course by ID")

		return entity.Course{}, err
	}

	return course.toEntity(), nil
}
