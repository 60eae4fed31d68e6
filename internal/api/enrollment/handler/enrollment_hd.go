package enrollmentHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/enrollment"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
	"github.com/tararauzumaki/autoattend/pkg/handlerUtil"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

func (h *EnrollmentHandler) HandleRegisterStudent(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing student registration request")

	var req enrollment.RegisterStudentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	photo, err := ctx.FormFile("photo")
	if err != nil {
		return errHandler.Handle(ctx, requestID, enrollment.ErrInvalidFileType, ctx.Path(), "read_photo_file")
	}

	student, err := h.enrollmentService.Student().RegisterStudent(c, req, photo)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "register_student")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, student)
	}
}

func (h *EnrollmentHandler) HandleGetStudent(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")

	student, err := h.enrollmentService.Student().GetStudent(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_student")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, student)
	}
}

func (h *EnrollmentHandler) HandleReplacePhoto(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")

	photo, err := ctx.FormFile("photo")
	if err != nil {
		return errHandler.Handle(ctx, requestID, enrollment.ErrInvalidFileType, ctx.Path(), "read_photo_file")
	}

	student, err := h.enrollmentService.Student().ReplacePhoto(c, id, photo)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "replace_student_photo")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, student)
	}
}

func (h *EnrollmentHandler) HandleDeleteStudent(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")

	if err := h.enrollmentService.Student().DeleteStudent(c, id); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_student")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, nil)
	}
}

func (h *EnrollmentHandler) HandleCreateCourse(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req enrollment.CreateCourseRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	course, err := h.enrollmentService.Course().CreateCourse(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_course")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, course)
	}
}

func (h *EnrollmentHandler) HandleGetRoster(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	courseID := ctx.Params("id")

	roster, err := h.enrollmentService.Course().GetRoster(c, courseID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_roster")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, roster)
	}
}
