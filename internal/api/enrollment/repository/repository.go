package enrollmentRepository

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/entity"
)

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	var db sqlx.ExtContext
	var commitFunc, rollbackFunc func() error

	db = r.DB

	if tx {
		var err error
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		db = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Students: &studentRepository{q: db, log: r.log},
		Courses:  &courseRepository{q: db, log: r.log},
		Faces:    &faceRepository{q: db, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Students interface {
		CreateStudent(ctx context.Context, student entity.Student) error
		GetByID(ctx context.Context, id string) (entity.Student, error)
		ListByCourse(ctx context.Context, courseID string) ([]entity.Student, error)
		UpdatePhotoURL(ctx context.Context, id string, photoURL string) error
		DeleteStudent(ctx context.Context, id string) error
	}

	Courses interface {
		CreateCourse(ctx context.Context, course entity.Course) error
		GetByID(ctx context.Context, id string) (entity.Course, error)
	}

	Faces interface {
		CreateFace(ctx context.Context, face entity.StudentFace) error
		ListByStudent(ctx context.Context, studentID string) ([]entity.StudentFace, error)
		ListByCourse(ctx context.Context, courseID string) ([]entity.StudentFace, error)
		DeleteByStudent(ctx context.Context, studentID string) error
	}

	Commit   func() error
	Rollback func() error
}

type studentRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}

type courseRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}

type faceRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}
