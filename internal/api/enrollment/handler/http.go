package enrollmentHandler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	enrollmentService "github.com/tararauzumaki/autoattend/internal/api/enrollment/service"
	"github.com/tararauzumaki/autoattend/internal/middleware"
)

type EnrollmentHandler struct {
	log               *logrus.Logger
	enrollmentService enrollmentService.EnrollmentService
	validator         *validator.Validate
	middleware        middleware.Middleware
}

func New(
	log *logrus.Logger,
	es enrollmentService.EnrollmentService,
	validate *validator.Validate,
	middleware middleware.Middleware) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:               log,
		enrollmentService: es,
		validator:         validate,
		middleware:        middleware,
	}
}

func (h *EnrollmentHandler) Start(srv fiber.Router) {
	students := srv.Group("/students")
	students.Post("/", h.HandleRegisterStudent)
	students.Get("/:id", h.HandleGetStudent)
	students.Post("/:id/photo", h.HandleReplacePhoto)
	students.Delete("/:id", h.HandleDeleteStudent)

	courses := srv.Group("/courses")
	courses.Post("/", h.HandleCreateCourse)
	courses.Get("/:id/students", h.HandleGetRoster)
}
