package enrollmentService

import (
	"context"
	"mime/multipart"

	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	enrollmentRepository "github.com/tararauzumaki/autoattend/internal/api/enrollment/repository"
	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/pkg/s3"
	"github.com/tararauzumaki/autoattend/pkg/utils"
)

type EnrollmentService interface {
	Student() StudentDomain
	Course() CourseDomain
	GetRepository() enrollmentRepository.Repository
}

type StudentDomain interface {
	RegisterStudent(c context.Context, req enrollment.RegisterStudentRequest, photo *multipart.FileHeader) (*enrollment.StudentResponse, error)
	GetStudent(c context.Context, id string) (*enrollment.StudentResponse, error)
	ReplacePhoto(c context.Context, studentID string, photo *multipart.FileHeader) (*enrollment.StudentResponse, error)
	DeleteStudent(c context.Context, id string) error
}

type CourseDomain interface {
	CreateCourse(c context.Context, req enrollment.CreateCourseRequest) (*enrollment.CourseResponse, error)
	GetRoster(c context.Context, courseID string) (*enrollment.RosterResponse, error)
}

// PhotoExtractor is the slice of the embedding client enrollment needs.
type PhotoExtractor interface {
	Extract(image []byte) (entity.Embedding, int, error)
}

type enrollmentService struct {
	log       *logrus.Logger
	repo      enrollmentRepository.Repository
	s3Client  s3.ItfS3
	extractor PhotoExtractor
	utils     utils.IUtils

	studentDomain StudentDomain
	courseDomain  CourseDomain
}

func (e *enrollmentService) Student() StudentDomain {
	return e.studentDomain
}

func (e *enrollmentService) Course() CourseDomain {
	return e.courseDomain
}

func (e *enrollmentService) GetRepository() enrollmentRepository.Repository {
	return e.repo
}

type studentDomainImpl struct {
	log       *logrus.Logger
	repo      enrollmentRepository.Repository
	s3Client  s3.ItfS3
	extractor PhotoExtractor
	utils     utils.IUtils
}

type courseDomainImpl struct {
	log   *logrus.Logger
	repo  enrollmentRepository.Repository
	utils utils.IUtils
}

func New(log *logrus.Logger,
	repo enrollmentRepository.Repository,
	s3Client s3.ItfS3,
	extractor PhotoExtractor,
	utils utils.IUtils,
) EnrollmentService {
	return &enrollmentService{
		log:       log,
		repo:      repo,
		s3Client:  s3Client,
		extractor: extractor,
		utils:     utils,

		studentDomain: &studentDomainImpl{log: log, repo: repo, s3Client: s3Client, extractor: extractor, utils: utils},
		courseDomain:  &courseDomainImpl{log: log, repo: repo, utils: utils},
	}
}
