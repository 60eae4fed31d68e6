package enrollmentRepository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
)

type StudentFaceDB struct {
	ID             sql.NullString  `db:"id"`
	StudentID      sql.NullString  `db:"student_id"`
	Embedding      pgvector.Vector `db:"embedding"`
	SourcePhotoURL sql.NullString  `db:"source_photo_url"`
	CreatedAt      sql.NullTime    `db:"created_at"`
}

func (f StudentFaceDB) toEntity() entity.StudentFace {
	return entity.StudentFace{
		ID:             f.ID.String,
		StudentID:      f.StudentID.String,
		Embedding:      vectorToEmbedding(f.Embedding),
		SourcePhotoURL: f.SourcePhotoURL.String,
		CreatedAt:      f.CreatedAt.Time,
	}
}

func embeddingToVector(e entity.Embedding) pgvector.Vector {
	v := make([]float32, len(e))
	for i, x := range e {
		v[i] = float32(x)
	}
	return pgvector.NewVector(v)
}

func vectorToEmbedding(v pgvector.Vector) entity.Embedding {
	s := v.Slice()
	e := make(entity.Embedding, len(s))
	for i, x := range s {
		e[i] = float64(x)
	}
	return e
}

func (r *faceRepository) CreateFace(c context.Context, face entity.StudentFace) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":               face.ID,
		"student_id":       face.StudentID,
		"embedding":        embeddingToVector(face.Embedding),
		"source_photo_url": face.SourcePhotoURL,
		"created_at":       time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateStudentFace, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateFace")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating student face")
		return err
	}

	return nil
}

func (r *faceRepository) ListByStudent(c context.Context, studentID string) ([]entity.StudentFace, error) {
	return r.list(c, queryListFacesByStudent, map[string]interface{}{
		"student_id": studentID,
	})
}

func (r *faceRepository) ListByCourse(c context.Context, courseID string) ([]entity.StudentFace, error) {
	return r.list(c, queryListFacesByCourse, map[string]interface{}{
		"course_id": courseID,
	})
}

func (r *faceRepository) list(c context.Context, namedQuery string, argsKV map[string]interface{}) ([]entity.StudentFace, error) {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(namedQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Face list named query preparation err")

		return nil, err
	}

	query = r.q.Rebind(query)

	rows, err := r.q.QueryxContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing student faces")

		return nil, err
	}
	defer rows.Close()

	var faces []entity.StudentFace
	for rows.Next() {
		var face StudentFaceDB
		if err := rows.StructScan(&face); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to scan student face row")
			return nil, err
		}
		faces = append(faces, face.toEntity())
	}

	return faces, rows.Err()
}

func (r *faceRepository) DeleteByStudent(c context.Context, studentID string) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"student_id": studentID,
	}

	query, args, err := sqlx.Named(queryDeleteFacesByStudent, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("DeleteByStudent named query preparation err")
		return err
	}

	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when deleting student faces")
		return err
	}

	return nil
}
