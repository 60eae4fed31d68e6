package attendanceRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
)

type SessionClosureDB struct {
	ID          sql.NullString `db:"id"`
	CourseID    sql.NullString `db:"course_id"`
	ClosureDate sql.NullString `db:"closure_date"`
	Status      sql.NullString `db:"status"`
	ClosedAt    sql.NullTime   `db:"closed_at"`
}

func (s SessionClosureDB) toEntity() entity.SessionClosure {
	status := entity.ClosureStatusNone
	switch s.Status.String {
	case "closing":
		status = entity.ClosureStatusClosing
	case "closed":
		status = entity.ClosureStatusClosed
	}

	return entity.SessionClosure{
		ID:          s.ID.String,
		CourseID:    s.CourseID.String,
		ClosureDate: s.ClosureDate.String,
		Status:      status,
		ClosedAt:    s.ClosedAt.Time,
	}
}

func (r *closureRepository) UpsertClosing(c context.Context, closure entity.SessionClosure) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":           closure.ID,
		"course_id":    closure.CourseID,
		"closure_date": closure.ClosureDate,
		"status":       entity.ClosureStatusClosing.String(),
	}

	query, args, err := sqlx.Named(queryUpsertClosing, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("UpsertClosing named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when upserting session closure")
		return err
	}

	return nil
}

func (r *closureRepository) MarkClosed(c context.Context, courseID, day string) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"course_id":    courseID,
		"closure_date": day,
		"status":       entity.ClosureStatusClosed.String(),
		"closed_at":    time.Now(),
	}

	query, args, err := sqlx.Named(queryMarkClosed, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("MarkClosed named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when marking session closed")
		return err
	}

	return nil
}

func (r *closureRepository) GetByCourseDay(c context.Context, courseID, day string) (entity.SessionClosure, error) {
	requestID := contextPkg.GetRequestID(c)
	var closure SessionClosureDB

	argsKV := map[string]interface{}{
		"course_id":    courseID,
		"closure_date": day,
	}

	query, args, err := sqlx.Named(queryGetClosureByCourseDay, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetByCourseDay named query preparation err")
		return entity.SessionClosure{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&closure); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.SessionClosure{Status: entity.ClosureStatusNone}, nil
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when getting session closure")

		return entity.SessionClosure{}, err
	}

	return closure.toEntity(), nil
}
