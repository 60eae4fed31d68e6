package enrollment

import (
	"net/http"

	"github.com/tararauzumaki/autoattend/pkg/response"
)

var (
	ErrStudentNotFound            = response.NewError(http.StatusNotFound, "student not found")
	ErrCourseNotFound             = response.NewError(http.StatusNotFound, "course not found")
	ErrStudentNumberAlreadyExists = response.NewError(http.StatusConflict, "student number already exists")
	ErrCourseCodeAlreadyExists    = response.NewError(http.StatusConflict, "course code already exists")
	ErrNoFaceInPhoto              = response.NewError(http.StatusUnprocessableEntity, "no face detected in photo")
	ErrModelNotReady              = response.NewError(http.StatusServiceUnavailable, "embedding service not ready")
	ErrInvalidFileType            = response.NewError(http.StatusBadRequest, "invalid file type")
	ErrFileTooLarge               = response.NewError(http.StatusBadRequest, "file too large")
	ErrFailedToUploadFile         = response.NewError(http.StatusInternalServerError, "failed to upload file")
)
