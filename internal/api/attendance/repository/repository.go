package attendanceRepository

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
		Records:  &recordRepository{q: db, log: r.log},
		Closures: &closureRepository{q: db, log: r.log},
		Commit:   commitFunc,
		Rollback: rollbackFunc,
	}, nil
}

type Client struct {
	Records interface {
		CreateRecord(ctx context.Context, record entity.AttendanceRecord) error
		ExistsForDay(ctx context.Context, studentID, courseID, day string) (bool, error)
		ListByCourseDay(ctx context.Context, courseID, day string) ([]entity.AttendanceRecord, error)
		ListByCourseRange(ctx context.Context, courseID, from, to string) ([]entity.AttendanceRecord, error)
	}

	Closures interface {
		UpsertClosing(ctx context.Context, closure entity.SessionClosure) error
		MarkClosed(ctx context.Context, courseID, day string) error
		GetByCourseDay(ctx context.Context, courseID, day string) (entity.SessionClosure, error)
	}

	Commit   func() error
	Rollback func() error
}

type recordRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}

type closureRepository struct {
	q   sqlx.ExtContext
	log *logrus.Logger
}
