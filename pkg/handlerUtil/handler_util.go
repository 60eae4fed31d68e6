package handlerUtil

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	"github.com/tararauzumaki/autoattend/pkg/log"
	"github.com/tararauzumaki/autoattend/pkg/response"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	// Enrollment domain errors
	if errors.Is(err, enrollment.ErrStudentNumberAlreadyExists) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Student number already exists")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Student number already exists",
			"code":    "STUDENT_NUMBER_ALREADY_EXISTS",
		})
	}

	if errors.Is(err, enrollment.ErrStudentNotFound) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Student not found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Student not found",
			"code":    "STUDENT_NOT_FOUND",
		})
	}

	if errors.Is(err, enrollment.ErrNoFaceInPhoto) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("No face detected in enrollment photo")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "No face detected in photo. Upload a clear frontal photo.",
			"code":    "NO_FACE_DETECTED",
		})
	}

	if errors.Is(err, enrollment.ErrModelNotReady) || errors.Is(err, attendance.ErrModelNotReady) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Embedding service not ready")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Recognition model is not ready yet. Try again shortly.",
			"code":    "MODEL_NOT_READY",
		})
	}

	if errors.Is(err, enrollment.ErrInvalidFileType) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Invalid file type")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid file type. Only images are allowed.",
		})
	}

	if errors.Is(err, enrollment.ErrFileTooLarge) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("File too large")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File too large. Maximum size is 5MB.",
		})
	}

	if errors.Is(err, enrollment.ErrFailedToUploadFile) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Failed to upload file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload file",
		})
	}

	// Attendance domain errors
	if errors.Is(err, attendance.ErrEmptyGallery) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Gallery is empty for course")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "No enrolled faces for this course",
			"code":    "EMPTY_GALLERY",
		})
	}

	if errors.Is(err, attendance.ErrSessionAlreadyActive) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Session already active for course")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "A session is already active for this course",
			"code":    "SESSION_ALREADY_ACTIVE",
		})
	}

	if errors.Is(err, attendance.ErrSessionNotFound) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Session not found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Session not found",
			"code":    "SESSION_NOT_FOUND",
		})
	}

	if errors.Is(err, attendance.ErrCameraUnavailable) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("No camera feed attached")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "No camera feed attached to session",
			"code":    "CAMERA_UNAVAILABLE",
		})
	}

	if errors.Is(err, attendance.ErrDuplicatePresent) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Student already marked present")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Student already marked present today",
			"code":    "DUPLICATE_PRESENT",
		})
	}

	if errors.Is(err, attendance.ErrInternalServerError) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Internal server error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "An unexpected error occurred",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
