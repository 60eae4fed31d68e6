package attendanceService

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	"github.com/tararauzumaki/autoattend/internal/entity"
	"github.com/tararauzumaki/autoattend/internal/recognition"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

// session is one live attendance run. Sessions exist only in memory; the
// durable outcome is the records the ledger writes.
type session struct {
	id           string
	courseID     string
	day          string
	loop         *recognition.Loop
	gallery      *recognition.Gallery
	startedAt    time.Time
	feedAttached bool
}

// StartSession builds the course gallery, starts the recognition loop and
// registers the session. The gallery is a snapshot: enrollment changes after
// this point are not picked up until the next session. Roster members whose
// references could not be prepared are reported back, not fatal.
func (s *sessionDomainImpl) StartSession(ctx context.Context, req attendance.StartSessionRequest) (*attendance.SessionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	s.mu.RLock()
	if _, active := s.activeByCourse[req.CourseID]; active {
		s.mu.RUnlock()
		return nil, attendance.ErrSessionAlreadyActive
	}
	s.mu.RUnlock()

	// A session with no reachable embedding service would only burn ticks;
	// refuse to start until the service is back.
	if !s.frames.IsConnected() {
		if err := s.frames.Reconnect(); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"course_id":  req.CourseID,
				"error":      err.Error(),
			}).Warn("Embedding service unavailable, refusing to start session")
			return nil, attendance.ErrModelNotReady
		}
	}

	repo, err := s.enrollmentRepo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	if _, err := repo.Courses.GetByID(ctx, req.CourseID); err != nil {
		return nil, attendance.ErrCourseNotFound
	}

	students, err := repo.Students.ListByCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	roster := make([]recognition.RosterEntry, 0, len(students))
	for _, student := range students {
		faces, err := repo.Faces.ListByStudent(ctx, student.ID)
		if err != nil {
			return nil, err
		}
		roster = append(roster, recognition.RosterEntry{Student: student, Faces: faces})
	}

	gallery, err := s.builder.Build(ctx, req.CourseID, roster)
	if err != nil {
		return nil, err
	}

	if gallery.Size() == 0 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"course_id":  req.CourseID,
		}).Warn("Refusing to start session with an empty gallery")
		return nil, attendance.ErrEmptyGallery
	}

	sessionID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	loop := recognition.NewLoop(s.log, sessionID, req.CourseID, gallery, s.matcher, s.frames, s.ledger, recognitionInterval())

	sess := &session{
		id:        sessionID,
		courseID:  req.CourseID,
		day:       s.utils.DayKey(now),
		loop:      loop,
		gallery:   gallery,
		startedAt: now,
	}

	s.mu.Lock()
	if _, active := s.activeByCourse[req.CourseID]; active {
		s.mu.Unlock()
		loop.Stop()
		return nil, attendance.ErrSessionAlreadyActive
	}
	s.sessions[sessionID] = sess
	s.activeByCourse[req.CourseID] = sessionID
	s.mu.Unlock()

	if err := loop.Start(); err != nil {
		s.removeSession(sess)
		return nil, err
	}

	s.log.WithFields(log.Fields{
		"request_id":   requestID,
		"session_id":   sessionID,
		"course_id":    req.CourseID,
		"gallery_size": gallery.Size(),
		"excluded":     len(gallery.Excluded()),
	}).Info("Session started, waiting for camera feed")

	return s.sessionResponse(sess), nil
}

func (s *sessionDomainImpl) GetSession(ctx context.Context, sessionID string) (*attendance.SessionResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	return s.sessionResponse(sess), nil
}

func (s *sessionDomainImpl) PauseSession(ctx context.Context, sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	if sess.loop.State() != recognition.StateRunning {
		return attendance.ErrSessionNotRunning
	}

	sess.loop.Pause()
	return nil
}

// ResumeSession requires a camera feed: resuming recognition with nothing to
// recognize from is an operator mistake worth surfacing.
func (s *sessionDomainImpl) ResumeSession(ctx context.Context, sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	if sess.loop.State() == recognition.StateStopped {
		return attendance.ErrSessionStopped
	}

	s.mu.RLock()
	attached := sess.feedAttached
	s.mu.RUnlock()

	if !attached {
		return attendance.ErrCameraUnavailable
	}

	sess.loop.Resume()
	return nil
}

func (s *sessionDomainImpl) StopSession(ctx context.Context, sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.loop.Stop()
	s.removeSession(sess)

	s.log.WithFields(log.Fields{
		"session_id": sessionID,
		"course_id":  sess.courseID,
	}).Info("Session stopped")

	return nil
}

// CloseSession stops the loop and runs the absentee sweep for the session's
// day. The sweep itself lives in the ledger so it can be retried by course
// and day after the session is gone.
func (s *sessionDomainImpl) CloseSession(ctx context.Context, sessionID string) (*attendance.CloseSessionResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.loop.Stop()
	s.removeSession(sess)

	return s.ledger.CloseDay(ctx, sess.courseID, sess.day)
}

func (s *sessionDomainImpl) AttachFeed(sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	if sess.loop.State() == recognition.StateStopped {
		return attendance.ErrSessionStopped
	}

	s.mu.Lock()
	sess.feedAttached = true
	s.mu.Unlock()

	s.log.WithFields(log.Fields{
		"session_id": sessionID,
	}).Info("Camera feed attached")

	return nil
}

func (s *sessionDomainImpl) DetachFeed(sessionID string) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return
	}

	s.mu.Lock()
	sess.feedAttached = false
	s.mu.Unlock()

	s.log.WithFields(log.Fields{
		"session_id": sessionID,
	}).Info("Camera feed detached")
}

func (s *sessionDomainImpl) OfferFrame(sessionID string, frame []byte) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.loop.OfferFrame(frame)
	return nil
}

func (s *sessionDomainImpl) Events(sessionID string) (<-chan entity.RecognitionEvent, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	return sess.loop.Events(), nil
}

// ReapStaleSessions stops sessions that outlived the maximum age. An operator
// who forgets to stop a session should not leave a loop running overnight.
func (s *sessionDomainImpl) ReapStaleSessions() {
	maxAge := sessionMaxAge()
	cutoff := time.Now().Add(-maxAge)

	s.mu.RLock()
	var stale []*session
	for _, sess := range s.sessions {
		if sess.startedAt.Before(cutoff) {
			stale = append(stale, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range stale {
		s.log.WithFields(log.Fields{
			"session_id": sess.id,
			"course_id":  sess.courseID,
			"started_at": sess.startedAt,
		}).Warn("Reaping stale session")

		sess.loop.Stop()
		s.removeSession(sess)
	}
}

func (s *sessionDomainImpl) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, attendance.ErrSessionNotFound
	}
	return sess, nil
}

func (s *sessionDomainImpl) removeSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sess.id)
	if s.activeByCourse[sess.courseID] == sess.id {
		delete(s.activeByCourse, sess.courseID)
	}
}

func (s *sessionDomainImpl) sessionResponse(sess *session) *attendance.SessionResponse {
	excluded := make([]attendance.ExcludedStudent, 0, len(sess.gallery.Excluded()))
	for _, e := range sess.gallery.Excluded() {
		excluded = append(excluded, attendance.ExcludedStudent{
			StudentID: e.StudentID,
			Name:      e.Name,
			Reason:    e.Reason,
		})
	}

	return &attendance.SessionResponse{
		ID:              sess.id,
		CourseID:        sess.courseID,
		State:           sess.loop.State().String(),
		GallerySize:     sess.gallery.Size(),
		Identities:      sess.gallery.Identities(),
		Excluded:        excluded,
		RecognizedCount: sess.loop.SeenCount(),
		StartedAt:       sess.startedAt,
	}
}

func recognitionInterval() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("RECOGNITION_INTERVAL_MS"))
	if err != nil || ms <= 0 {
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

func sessionMaxAge() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("SESSION_MAX_AGE_HOURS"))
	if err != nil || hours <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}
