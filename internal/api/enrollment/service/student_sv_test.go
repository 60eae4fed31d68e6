package enrollmentService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	enrollmentRepository "github.com/tararauzumaki/autoattend/internal/api/enrollment/repository"
	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/pkg/extractor"
	"github.com/tararauzumaki/autoattend/pkg/utils"
)

type fakeRepo struct {
	mu               sync.Mutex
	courses          map[string]entity.Course
	students         []entity.Student
	faces            []entity.StudentFace
	createStudentErr error
	rolledBack       bool
}

func newFakeRepo(courseIDs ...string) *fakeRepo {
	r := &fakeRepo{courses: make(map[string]entity.Course)}
	for _, id := range courseIDs {
		r.courses[id] = entity.Course{ID: id, Code: id, Name: id}
	}
	return r
}

func (r *fakeRepo) NewClient(tx bool) (enrollmentRepository.Client, error) {
	return enrollmentRepository.Client{
		Students: &fakeStudents{repo: r},
		Courses:  &fakeCourses{repo: r},
		Faces:    &fakeFaces{repo: r},
		Commit:   func() error { return nil },
		Rollback: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rolledBack = true
			r.students = nil
			r.faces = nil
			return nil
		},
	}, nil
}

func (r *fakeRepo) studentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.students)
}

type fakeStudents struct {
	repo *fakeRepo
}

func (f *fakeStudents) CreateStudent(ctx context.Context, student entity.Student) error {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()

	if f.repo.createStudentErr != nil {
		return f.repo.createStudentErr
	}
	f.repo.students = append(f.repo.students, student)
	return nil
}

func (f *fakeStudents) GetByID(ctx context.Context, id string) (entity.Student, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()

	for _, student := range f.repo.students {
		if student.ID == id {
			return student, nil
		}
	}
	return entity.Student{}, enrollment.ErrStudentNotFound
}

func (f *fakeStudents) ListByCourse(ctx context.Context, courseID string) ([]entity.Student, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()

	var out []entity.Student
	for _, student := range f.repo.students {
		if student.CourseID == courseID {
			out = append(out, student)
		}
	}
	return out, nil
}

func (f *fakeStudents) UpdatePhotoURL(ctx context.Context, id string, photoURL string) error {
	return nil
}

func (f *fakeStudents) DeleteStudent(ctx context.Context, id string) error {
	return nil
}

type fakeCourses struct {
	repo *fakeRepo
}

func (f *fakeCourses) CreateCourse(ctx context.Context, course entity.Course) error {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.courses[course.ID] = course
	return nil
}

func (f *fakeCourses) GetByID(ctx context.Context, id string) (entity.Course, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()

	course, ok := f.repo.courses[id]
	if !ok {
		return entity.Course{}, enrollment.ErrCourseNotFound
	}
	return course, nil
}

type fakeFaces struct {
	repo *fakeRepo
}

func (f *fakeFaces) CreateFace(ctx context.Context, face entity.StudentFace) error {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.faces = append(f.repo.faces, face)
	return nil
}

func (f *fakeFaces) ListByStudent(ctx context.Context, studentID string) ([]entity.StudentFace, error) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()

	var out []entity.StudentFace
	for _, face := range f.repo.faces {
		if face.StudentID == studentID {
			out = append(out, face)
		}
	}
	return out, nil
}

func (f *fakeFaces) ListByCourse(ctx context.Context, courseID string) ([]entity.StudentFace, error) {
	return nil, nil
}

func (f *fakeFaces) DeleteByStudent(ctx context.Context, studentID string) error {
	return nil
}

type fakeS3 struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	uploadErr error
}

func (s *fakeS3) UploadBytes(fileName string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	url := "https://bucket.s3.amazonaws.com/" + fileName
	s.uploads = append(s.uploads, url)
	return url, nil
}

func (s *fakeS3) FetchFile(fileURL string) ([]byte, error) {
	return nil, errors.New("not stored")
}

func (s *fakeS3) PresignUrl(fileURL string) (string, error) {
	return fileURL + "?signed", nil
}

func (s *fakeS3) DeleteFile(fileURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, fileURL)
	return nil
}

func (s *fakeS3) deletedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type stubExtractor struct {
	embedding entity.Embedding
	faces     int
	err       error
}

func (e *stubExtractor) Extract(image []byte) (entity.Embedding, int, error) {
	if e.err != nil {
		return nil, 0, e.err
	}
	return e.embedding, e.faces, nil
}

func validEmbedding() entity.Embedding {
	e := make(entity.Embedding, entity.EmbeddingDim)
	e[0] = 1
	return e
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func photoHeader(t *testing.T, fileName, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, fileName))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	form, err := multipart.NewReader(&buf, writer.Boundary()).ReadForm(int64(len(data)) + 4096)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { form.RemoveAll() })

	return form.File["photo"][0]
}

func newStudentDomain(repo *fakeRepo, s3Client *fakeS3, ext PhotoExtractor) StudentDomain {
	return New(quietLogger(), repo, s3Client, ext, utils.New()).Student()
}

func TestRegisterStudentPersistsStudentAndFace(t *testing.T) {
	repo := newFakeRepo("c1")
	s3Client := &fakeS3{}
	domain := newStudentDomain(repo, s3Client, &stubExtractor{embedding: validEmbedding(), faces: 1})

	photo := photoHeader(t, "ana.jpg", "image/jpeg", []byte("jpeg-bytes"))

	resp, err := domain.RegisterStudent(context.Background(), enrollment.RegisterStudentRequest{
		CourseID:      "c1",
		Name:          "Ana",
		StudentNumber: "2201",
	}, photo)
	if err != nil {
		t.Fatalf("RegisterStudent: %v", err)
	}

	if resp.FaceCount != 1 {
		t.Fatalf("expected 1 reference face, got %d", resp.FaceCount)
	}
	if resp.PhotoURL == "" {
		t.Fatal("response must carry the stored photo URL")
	}
	if repo.studentCount() != 1 || len(repo.faces) != 1 {
		t.Fatalf("expected student and face persisted, got %d/%d", repo.studentCount(), len(repo.faces))
	}
	if !repo.faces[0].Embedding.Valid() {
		t.Fatal("persisted face must carry a valid embedding")
	}
}

func TestRegisterStudentNoFaceRollsBackPhoto(t *testing.T) {
	repo := newFakeRepo("c1")
	s3Client := &fakeS3{}
	domain := newStudentDomain(repo, s3Client, &stubExtractor{err: extractor.ErrNoFaceDetected})

	photo := photoHeader(t, "empty.jpg", "image/jpeg", []byte("no-face"))

	_, err := domain.RegisterStudent(context.Background(), enrollment.RegisterStudentRequest{
		CourseID:      "c1",
		Name:          "Ana",
		StudentNumber: "2201",
	}, photo)
	if !errors.Is(err, enrollment.ErrNoFaceInPhoto) {
		t.Fatalf("expected ErrNoFaceInPhoto, got %v", err)
	}

	if repo.studentCount() != 0 {
		t.Fatal("no student may be persisted when extraction fails")
	}

	deleted := s3Client.deletedURLs()
	if len(deleted) != 1 {
		t.Fatalf("uploaded photo must be rolled back, deleted=%v", deleted)
	}
}

func TestRegisterStudentModelNotReady(t *testing.T) {
	repo := newFakeRepo("c1")
	s3Client := &fakeS3{}
	domain := newStudentDomain(repo, s3Client, &stubExtractor{err: extractor.ErrModelNotReady})

	photo := photoHeader(t, "ana.jpg", "image/jpeg", []byte("jpeg-bytes"))

	_, err := domain.RegisterStudent(context.Background(), enrollment.RegisterStudentRequest{
		CourseID:      "c1",
		Name:          "Ana",
		StudentNumber: "2201",
	}, photo)
	if !errors.Is(err, enrollment.ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}

	if len(s3Client.deletedURLs()) != 1 {
		t.Fatal("uploaded photo must be rolled back when the model is unavailable")
	}
}

func TestRegisterStudentRejectsNonImage(t *testing.T) {
	repo := newFakeRepo("c1")
	s3Client := &fakeS3{}
	domain := newStudentDomain(repo, s3Client, &stubExtractor{embedding: validEmbedding(), faces: 1})

	photo := photoHeader(t, "notes.txt", "text/plain", []byte("hello"))

	_, err := domain.RegisterStudent(context.Background(), enrollment.RegisterStudentRequest{
		CourseID:      "c1",
		Name:          "Ana",
		StudentNumber: "2201",
	}, photo)
	if !errors.Is(err, enrollment.ErrInvalidFileType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}

	if len(s3Client.uploads) != 0 {
		t.Fatal("rejected files must not reach S3")
	}
}

func TestRegisterStudentUnknownCourse(t *testing.T) {
	repo := newFakeRepo()
	s3Client := &fakeS3{}
	domain := newStudentDomain(repo, s3Client, &stubExtractor{embedding: validEmbedding(), faces: 1})

	photo := photoHeader(t, "ana.jpg", "image/jpeg", []byte("jpeg-bytes"))

	_, err := domain.RegisterStudent(context.Background(), enrollment.RegisterStudentRequest{
		CourseID:      "missing",
		Name:          "Ana",
		StudentNumber: "2201",
	}, photo)
	if !errors.Is(err, enrollment.ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestRegisterStudentRollsBackOnPersistFailure(t *testing.T) {
	repo := newFakeRepo("c1")
	repo.createStudentErr = errors.New("connection reset")
	s3Client := &fakeS3{}
	domain := newStudentDomain(repo, s3Client, &stubExtractor{embedding: validEmbedding(), faces: 1})

	photo := photoHeader(t, "ana.jpg", "image/jpeg", []byte("jpeg-bytes"))

	_, err := domain.RegisterStudent(context.Background(), enrollment.RegisterStudentRequest{
		CourseID:      "c1",
		Name:          "Ana",
		StudentNumber: "2201",
	}, photo)
	if err == nil {
		t.Fatal("expected error when the insert fails")
	}

	if !repo.rolledBack {
		t.Fatal("transaction must be rolled back")
	}
	if len(s3Client.deletedURLs()) != 1 {
		t.Fatal("uploaded photo must be rolled back with the transaction")
	}
}
