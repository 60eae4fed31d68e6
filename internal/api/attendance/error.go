package attendance

import (
	"net/http"

	"github.com/tararauzumaki/autoattend/pkg/response"
)

var (
	ErrSessionNotFound      = response.NewError(http.StatusNotFound, "session not found")
	ErrCourseNotFound       = response.NewError(http.StatusNotFound, "course not found")
	ErrSessionAlreadyActive = response.NewError(http.StatusConflict, "a session is already active for this course")
	ErrSessionNotRunning    = response.NewError(http.StatusConflict, "session is not running")
	ErrSessionStopped       = response.NewError(http.StatusConflict, "session has been stopped")
	ErrSessionAlreadyClosed = response.NewError(http.StatusConflict, "session already closed")
	ErrEmptyGallery         = response.NewError(http.StatusUnprocessableEntity, "no enrolled faces for this course")
	ErrCameraUnavailable    = response.NewError(http.StatusConflict, "no camera feed attached to session")
	ErrModelNotReady        = response.NewError(http.StatusServiceUnavailable, "embedding service not ready")
	ErrDuplicatePresent     = response.NewError(http.StatusConflict, "student already marked present today")
	ErrInvalidDateRange     = response.NewError(http.StatusBadRequest, "invalid date range")
	ErrInternalServerError  = response.NewError(http.StatusInternalServerError, "internal server error")
)
