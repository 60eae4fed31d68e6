package attendanceService

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	attendanceRepository "github.com/tararauzumaki/autoattend/internal/api/attendance/repository"
	enrollmentRepository "github.com/tararauzumaki/autoattend/internal/api/enrollment/repository"
	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/pkg/utils"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type attendanceStore struct {
	mu        sync.Mutex
	records   []entity.AttendanceRecord
	closures  map[string]entity.SessionClosure
	createErr error
}

func newAttendanceStore() *attendanceStore {
	return &attendanceStore{closures: make(map[string]entity.SessionClosure)}
}

func (s *attendanceStore) setCreateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *attendanceStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *attendanceStore) closureStatus(courseID, day string) entity.ClosureStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closures[courseID+"|"+day].Status
}

type fakeAttendanceRepo struct {
	store *attendanceStore
}

func (r *fakeAttendanceRepo) NewClient(tx bool) (attendanceRepository.Client, error) {
	return attendanceRepository.Client{
		Records:  &fakeRecordStore{store: r.store},
		Closures: &fakeClosureStore{store: r.store},
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type fakeRecordStore struct {
	store *attendanceStore
}

func (f *fakeRecordStore) CreateRecord(ctx context.Context, record entity.AttendanceRecord) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	if f.store.createErr != nil {
		return f.store.createErr
	}

	for _, existing := range f.store.records {
		if existing.StudentID == record.StudentID &&
			existing.CourseID == record.CourseID &&
			existing.AttendanceDate == record.AttendanceDate {
			return attendance.ErrDuplicatePresent
		}
	}

	f.store.records = append(f.store.records, record)
	return nil
}

func (f *fakeRecordStore) ExistsForDay(ctx context.Context, studentID, courseID, day string) (bool, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	for _, record := range f.store.records {
		if record.StudentID == studentID && record.CourseID == courseID && record.AttendanceDate == day {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRecordStore) ListByCourseDay(ctx context.Context, courseID, day string) ([]entity.AttendanceRecord, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	var out []entity.AttendanceRecord
	for _, record := range f.store.records {
		if record.CourseID == courseID && record.AttendanceDate == day {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeRecordStore) ListByCourseRange(ctx context.Context, courseID, from, to string) ([]entity.AttendanceRecord, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	var out []entity.AttendanceRecord
	for _, record := range f.store.records {
		if record.CourseID == courseID && record.AttendanceDate >= from && record.AttendanceDate <= to {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeClosureStore struct {
	store *attendanceStore
}

func (f *fakeClosureStore) UpsertClosing(ctx context.Context, closure entity.SessionClosure) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	closure.Status = entity.ClosureStatusClosing
	f.store.closures[closure.CourseID+"|"+closure.ClosureDate] = closure
	return nil
}

func (f *fakeClosureStore) MarkClosed(ctx context.Context, courseID, day string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	closure := f.store.closures[courseID+"|"+day]
	closure.Status = entity.ClosureStatusClosed
	f.store.closures[courseID+"|"+day] = closure
	return nil
}

func (f *fakeClosureStore) GetByCourseDay(ctx context.Context, courseID, day string) (entity.SessionClosure, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	closure, ok := f.store.closures[courseID+"|"+day]
	if !ok {
		return entity.SessionClosure{Status: entity.ClosureStatusNone}, nil
	}
	return closure, nil
}

type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]struct{}
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]struct{})}
}

func (r *fakeRedis) MarkPresent(ctx context.Context, courseID, studentID, day string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return false, r.err
	}

	key := courseID + "|" + studentID + "|" + day
	if _, ok := r.keys[key]; ok {
		return false, nil
	}
	r.keys[key] = struct{}{}
	return true, nil
}

func (r *fakeRedis) IsPresent(ctx context.Context, courseID, studentID, day string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return false, r.err
	}

	_, ok := r.keys[courseID+"|"+studentID+"|"+day]
	return ok, nil
}

func (r *fakeRedis) marked(courseID, studentID, day string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.keys[courseID+"|"+studentID+"|"+day]
	return ok
}

type enrollmentStore struct {
	mu       sync.Mutex
	courses  map[string]entity.Course
	students map[string][]entity.Student
	faces    map[string][]entity.StudentFace
}

func newEnrollmentStore() *enrollmentStore {
	return &enrollmentStore{
		courses:  make(map[string]entity.Course),
		students: make(map[string][]entity.Student),
		faces:    make(map[string][]entity.StudentFace),
	}
}

func (s *enrollmentStore) addCourse(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[id] = entity.Course{ID: id, Code: id, Name: id}
}

func (s *enrollmentStore) addStudent(courseID string, student entity.Student, faces ...entity.StudentFace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student.CourseID = courseID
	s.students[courseID] = append(s.students[courseID], student)
	s.faces[student.ID] = faces
}

type fakeEnrollmentRepo struct {
	store *enrollmentStore
}

func (r *fakeEnrollmentRepo) NewClient(tx bool) (enrollmentRepository.Client, error) {
	return enrollmentRepository.Client{
		Students: &fakeStudentStore{store: r.store},
		Courses:  &fakeCourseStore{store: r.store},
		Faces:    &fakeFaceStore{store: r.store},
		Commit:   func() error { return nil },
		Rollback: func() error { return nil },
	}, nil
}

type fakeStudentStore struct {
	store *enrollmentStore
}

func (f *fakeStudentStore) CreateStudent(ctx context.Context, student entity.Student) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.students[student.CourseID] = append(f.store.students[student.CourseID], student)
	return nil
}

func (f *fakeStudentStore) GetByID(ctx context.Context, id string) (entity.Student, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	for _, list := range f.store.students {
		for _, student := range list {
			if student.ID == id {
				return student, nil
			}
		}
	}
	return entity.Student{}, errors.New("student not found")
}

func (f *fakeStudentStore) ListByCourse(ctx context.Context, courseID string) ([]entity.Student, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return append([]entity.Student(nil), f.store.students[courseID]...), nil
}

func (f *fakeStudentStore) UpdatePhotoURL(ctx context.Context, id string, photoURL string) error {
	return nil
}

func (f *fakeStudentStore) DeleteStudent(ctx context.Context, id string) error {
	return nil
}

type fakeCourseStore struct {
	store *enrollmentStore
}

func (f *fakeCourseStore) CreateCourse(ctx context.Context, course entity.Course) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.courses[course.ID] = course
	return nil
}

func (f *fakeCourseStore) GetByID(ctx context.Context, id string) (entity.Course, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	course, ok := f.store.courses[id]
	if !ok {
		return entity.Course{}, errors.New("course not found")
	}
	return course, nil
}

type fakeFaceStore struct {
	store *enrollmentStore
}

func (f *fakeFaceStore) CreateFace(ctx context.Context, face entity.StudentFace) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.faces[face.StudentID] = append(f.store.faces[face.StudentID], face)
	return nil
}

func (f *fakeFaceStore) ListByStudent(ctx context.Context, studentID string) ([]entity.StudentFace, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return append([]entity.StudentFace(nil), f.store.faces[studentID]...), nil
}

func (f *fakeFaceStore) ListByCourse(ctx context.Context, courseID string) ([]entity.StudentFace, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	var out []entity.StudentFace
	for _, student := range f.store.students[courseID] {
		out = append(out, f.store.faces[student.ID]...)
	}
	return out, nil
}

func (f *fakeFaceStore) DeleteByStudent(ctx context.Context, studentID string) error {
	return nil
}

func newTestLedger(store *attendanceStore, enrollStore *enrollmentStore, redisServer *fakeRedis) LedgerDomain {
	return &ledgerDomainImpl{
		log:            quietLogger(),
		attendanceRepo: &fakeAttendanceRepo{store: store},
		enrollmentRepo: &fakeEnrollmentRepo{store: enrollStore},
		redisServer:    redisServer,
		utils:          utils.New(),
	}
}

func recognitionEventFor(studentID, courseID string, at time.Time) entity.RecognitionEvent {
	return entity.RecognitionEvent{
		SessionID:  "sess-1",
		CourseID:   courseID,
		StudentID:  studentID,
		Name:       "Student " + studentID,
		Distance:   0.41,
		ObservedAt: at,
	}
}

func TestRecordPresentOncePerDay(t *testing.T) {
	store := newAttendanceStore()
	redisServer := newFakeRedis()
	ledger := newTestLedger(store, newEnrollmentStore(), redisServer)

	now := time.Now()
	event := recognitionEventFor("s1", "c1", now)

	for i := 0; i < 3; i++ {
		if err := ledger.RecordPresent(context.Background(), event); err != nil {
			t.Fatalf("RecordPresent #%d: %v", i+1, err)
		}
	}

	if got := store.recordCount(); got != 1 {
		t.Fatalf("expected 1 record after repeated recognitions, got %d", got)
	}

	day := now.Format("2006-01-02")
	if !redisServer.marked("c1", "s1", day) {
		t.Fatal("expected present marker to be set after successful write")
	}
}

func TestRecordPresentRedisFastPathSkipsDatabase(t *testing.T) {
	store := newAttendanceStore()
	redisServer := newFakeRedis()
	ledger := newTestLedger(store, newEnrollmentStore(), redisServer)

	now := time.Now()
	day := now.Format("2006-01-02")
	if _, err := redisServer.MarkPresent(context.Background(), "c1", "s1", day); err != nil {
		t.Fatal(err)
	}

	store.setCreateErr(errors.New("database down"))

	if err := ledger.RecordPresent(context.Background(), recognitionEventFor("s1", "c1", now)); err != nil {
		t.Fatalf("expected fast path to skip the database, got %v", err)
	}
}

func TestRecordPresentStaysRetryableAfterWriteFailure(t *testing.T) {
	store := newAttendanceStore()
	redisServer := newFakeRedis()
	ledger := newTestLedger(store, newEnrollmentStore(), redisServer)

	store.setCreateErr(errors.New("connection reset"))

	now := time.Now()
	event := recognitionEventFor("s1", "c1", now)

	if err := ledger.RecordPresent(context.Background(), event); err == nil {
		t.Fatal("expected error when the write fails")
	}

	day := now.Format("2006-01-02")
	if redisServer.marked("c1", "s1", day) {
		t.Fatal("marker must not be set before the record exists")
	}

	store.setCreateErr(nil)
	if err := ledger.RecordPresent(context.Background(), event); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}

	if got := store.recordCount(); got != 1 {
		t.Fatalf("expected 1 record after retry, got %d", got)
	}
}

func TestRecordPresentTreatsDuplicateAsBenign(t *testing.T) {
	store := newAttendanceStore()
	redisServer := newFakeRedis()
	ledger := newTestLedger(store, newEnrollmentStore(), redisServer)

	now := time.Now()
	day := now.Format("2006-01-02")
	store.records = append(store.records, entity.AttendanceRecord{
		ID:             "existing",
		StudentID:      "s1",
		CourseID:       "c1",
		Status:         entity.AttendanceStatusPresent,
		AttendanceDate: day,
	})

	if err := ledger.RecordPresent(context.Background(), recognitionEventFor("s1", "c1", now)); err != nil {
		t.Fatalf("existing record should be a no-op, got %v", err)
	}

	if got := store.recordCount(); got != 1 {
		t.Fatalf("expected no new record, got %d total", got)
	}
}

func TestCloseDayMarksAbsentees(t *testing.T) {
	store := newAttendanceStore()
	enrollStore := newEnrollmentStore()
	redisServer := newFakeRedis()
	ledger := newTestLedger(store, enrollStore, redisServer)

	enrollStore.addCourse("c1")
	enrollStore.addStudent("c1", entity.Student{ID: "s1", Name: "Ana"})
	enrollStore.addStudent("c1", entity.Student{ID: "s2", Name: "Budi"})
	enrollStore.addStudent("c1", entity.Student{ID: "s3", Name: "Citra"})

	now := time.Now()
	day := now.Format("2006-01-02")
	if err := ledger.RecordPresent(context.Background(), recognitionEventFor("s2", "c1", now)); err != nil {
		t.Fatal(err)
	}

	summary, err := ledger.CloseDay(context.Background(), "c1", day)
	if err != nil {
		t.Fatalf("CloseDay: %v", err)
	}

	if summary.Present != 1 || summary.Absent != 2 {
		t.Fatalf("expected 1 present and 2 absent, got %d/%d", summary.Present, summary.Absent)
	}
	if summary.Status != entity.ClosureStatusClosed.String() {
		t.Fatalf("expected closed status, got %q", summary.Status)
	}
	if got := store.recordCount(); got != 3 {
		t.Fatalf("every roster member must have exactly one record, got %d", got)
	}
	if store.closureStatus("c1", day) != entity.ClosureStatusClosed {
		t.Fatal("closure row should be marked closed")
	}
}

func TestCloseDayTwiceReturnsExistingSummary(t *testing.T) {
	store := newAttendanceStore()
	enrollStore := newEnrollmentStore()
	ledger := newTestLedger(store, enrollStore, newFakeRedis())

	enrollStore.addCourse("c1")
	enrollStore.addStudent("c1", entity.Student{ID: "s1", Name: "Ana"})
	enrollStore.addStudent("c1", entity.Student{ID: "s2", Name: "Budi"})

	day := time.Now().Format("2006-01-02")
	first, err := ledger.CloseDay(context.Background(), "c1", day)
	if err != nil {
		t.Fatal(err)
	}

	second, err := ledger.CloseDay(context.Background(), "c1", day)
	if err != nil {
		t.Fatalf("re-closing a closed day: %v", err)
	}

	if first.Present != second.Present || first.Absent != second.Absent {
		t.Fatalf("summaries differ: %+v vs %+v", first, second)
	}
	if got := store.recordCount(); got != 2 {
		t.Fatalf("re-close must not add records, got %d", got)
	}
}

func TestCloseDayStaysRetryableAfterSweepFailure(t *testing.T) {
	store := newAttendanceStore()
	enrollStore := newEnrollmentStore()
	ledger := newTestLedger(store, enrollStore, newFakeRedis())

	enrollStore.addCourse("c1")
	enrollStore.addStudent("c1", entity.Student{ID: "s1", Name: "Ana"})
	enrollStore.addStudent("c1", entity.Student{ID: "s2", Name: "Budi"})

	day := time.Now().Format("2006-01-02")

	store.setCreateErr(errors.New("write timeout"))
	if _, err := ledger.CloseDay(context.Background(), "c1", day); err == nil {
		t.Fatal("expected error when the absentee sweep fails")
	}

	if store.closureStatus("c1", day) != entity.ClosureStatusClosing {
		t.Fatal("closure row should stay in closing after a failed sweep")
	}

	store.setCreateErr(nil)
	summary, err := ledger.CloseDay(context.Background(), "c1", day)
	if err != nil {
		t.Fatalf("retrying close: %v", err)
	}

	if summary.Absent != 2 {
		t.Fatalf("expected 2 absent after retry, got %d", summary.Absent)
	}
	if store.closureStatus("c1", day) != entity.ClosureStatusClosed {
		t.Fatal("closure row should be closed after the retry succeeds")
	}
}
