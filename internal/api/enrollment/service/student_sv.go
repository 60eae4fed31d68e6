package enrollmentService

import (
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	"github.com/tararauzumaki/autoattend/internal/entity"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
	"github.com/tararauzumaki/autoattend/pkg/extractor"
	"github.com/tararauzumaki/autoattend/pkg/log"
	"github.com/tararauzumaki/autoattend/pkg/utils"
)

// RegisterStudent creates a student with one reference face. The photo is
// uploaded first so the embedding is extracted from the exact stored bytes;
// any failure after the upload deletes the photo again.
func (s *studentDomainImpl) RegisterStudent(ctx context.Context, req enrollment.RegisterStudentRequest, photo *multipart.FileHeader) (*enrollment.StudentResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.validatePhoto(requestID, photo); err != nil {
		return nil, err
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	course, err := repo.Courses.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	data, err := readMultipartFile(photo)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to read uploaded photo")
		return nil, err
	}

	photoURL, err := s.s3Client.UploadBytes(photo.Filename, data, photo.Header.Get("Content-Type"))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to upload photo to S3")
		return nil, enrollment.ErrFailedToUploadFile
	}

	embedding, err := s.extractEmbedding(ctx, requestID, photoURL, data)
	if err != nil {
		return nil, err
	}

	studentID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	faceID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	txRepo, err := s.repo.NewClient(true)
	if err != nil {
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	student := entity.Student{
		ID:            studentID,
		CourseID:      course.ID,
		Name:          req.Name,
		StudentNumber: req.StudentNumber,
		PhotoURL:      photoURL,
	}

	if err := txRepo.Students.CreateStudent(ctx, student); err != nil {
		txRepo.Rollback()
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	face := entity.StudentFace{
		ID:             faceID,
		StudentID:      studentID,
		Embedding:      embedding,
		SourcePhotoURL: photoURL,
	}

	if err := txRepo.Faces.CreateFace(ctx, face); err != nil {
		txRepo.Rollback()
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	if err := txRepo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to commit student registration")
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"student_id": studentID,
		"course_id":  course.ID,
	}).Info("Student registered with reference face")

	return &enrollment.StudentResponse{
		ID:            studentID,
		CourseID:      course.ID,
		Name:          req.Name,
		StudentNumber: req.StudentNumber,
		PhotoURL:      photoURL,
		FaceCount:     1,
		CreatedAt:     time.Now(),
	}, nil
}

func (s *studentDomainImpl) GetStudent(ctx context.Context, id string) (*enrollment.StudentResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, err
	}

	student, err := repo.Students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	faces, err := repo.Faces.ListByStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	photoURL := student.PhotoURL
	if photoURL != "" {
		if presigned, err := s.s3Client.PresignUrl(photoURL); err == nil {
			photoURL = presigned
		}
	}

	return &enrollment.StudentResponse{
		ID:            student.ID,
		CourseID:      student.CourseID,
		Name:          student.Name,
		StudentNumber: student.StudentNumber,
		PhotoURL:      photoURL,
		FaceCount:     len(faces),
		CreatedAt:     student.CreatedAt,
	}, nil
}

// ReplacePhoto uploads a new reference photo and adds its embedding alongside
// the student's existing references. The old photo stays in place for faces
// already extracted from it.
func (s *studentDomainImpl) ReplacePhoto(ctx context.Context, studentID string, photo *multipart.FileHeader) (*enrollment.StudentResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.validatePhoto(requestID, photo); err != nil {
		return nil, err
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}

	student, err := repo.Students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	data, err := readMultipartFile(photo)
	if err != nil {
		return nil, err
	}

	photoURL, err := s.s3Client.UploadBytes(photo.Filename, data, photo.Header.Get("Content-Type"))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to upload photo to S3")
		return nil, enrollment.ErrFailedToUploadFile
	}

	embedding, err := s.extractEmbedding(ctx, requestID, photoURL, data)
	if err != nil {
		return nil, err
	}

	faceID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	txRepo, err := s.repo.NewClient(true)
	if err != nil {
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	face := entity.StudentFace{
		ID:             faceID,
		StudentID:      student.ID,
		Embedding:      embedding,
		SourcePhotoURL: photoURL,
	}

	if err := txRepo.Faces.CreateFace(ctx, face); err != nil {
		txRepo.Rollback()
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	if err := txRepo.Students.UpdatePhotoURL(ctx, student.ID, photoURL); err != nil {
		txRepo.Rollback()
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	if err := txRepo.Commit(); err != nil {
		s.rollbackPhoto(requestID, photoURL)
		return nil, err
	}

	faces, err := repo.Faces.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	return &enrollment.StudentResponse{
		ID:            student.ID,
		CourseID:      student.CourseID,
		Name:          student.Name,
		StudentNumber: student.StudentNumber,
		PhotoURL:      photoURL,
		FaceCount:     len(faces),
		CreatedAt:     student.CreatedAt,
	}, nil
}

func (s *studentDomainImpl) DeleteStudent(ctx context.Context, id string) error {
	requestID := contextPkg.GetRequestID(ctx)

	txRepo, err := s.repo.NewClient(true)
	if err != nil {
		return err
	}

	student, err := txRepo.Students.GetByID(ctx, id)
	if err != nil {
		txRepo.Rollback()
		return err
	}

	if err := txRepo.Faces.DeleteByStudent(ctx, id); err != nil {
		txRepo.Rollback()
		return err
	}

	if err := txRepo.Students.DeleteStudent(ctx, id); err != nil {
		txRepo.Rollback()
		return err
	}

	if err := txRepo.Commit(); err != nil {
		return err
	}

	if student.PhotoURL != "" {
		if err := s.s3Client.DeleteFile(student.PhotoURL); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"student_id": id,
				"error":      err.Error(),
			}).Warn("Failed to delete student photo from S3")
		}
	}

	return nil
}

func (s *studentDomainImpl) validatePhoto(requestID string, photo *multipart.FileHeader) error {
	if err := s.utils.ValidateImageFile(photo); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Rejected enrollment photo")

		if errors.Is(err, utils.ErrFileTooLarge) {
			return enrollment.ErrFileTooLarge
		}
		return enrollment.ErrInvalidFileType
	}
	return nil
}

// extractEmbedding runs the embedding service against the uploaded bytes and
// deletes the upload when extraction fails. Several faces in one photo is
// accepted with a warning; the most prominent face becomes the reference.
func (s *studentDomainImpl) extractEmbedding(ctx context.Context, requestID, photoURL string, data []byte) (entity.Embedding, error) {
	embedding, faces, err := s.extractor.Extract(data)
	if err != nil {
		s.rollbackPhoto(requestID, photoURL)

		if errors.Is(err, extractor.ErrNoFaceDetected) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
			}).Warn("No face detected in enrollment photo")
			return nil, enrollment.ErrNoFaceInPhoto
		}
		if errors.Is(err, extractor.ErrModelNotReady) {
			return nil, enrollment.ErrModelNotReady
		}

		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to extract embedding from enrollment photo")
		return nil, err
	}

	if faces > 1 {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"faces":      faces,
		}).Warn("Enrollment photo contains multiple faces, using the most prominent")
	}

	return embedding, nil
}

func (s *studentDomainImpl) rollbackPhoto(requestID, photoURL string) {
	if err := s.s3Client.DeleteFile(photoURL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"photo_url":  photoURL,
			"error":      err.Error(),
		}).Warn("Failed to roll back uploaded photo")
	}
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
