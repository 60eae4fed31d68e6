package attendanceHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
	"github.com/tararauzumaki/autoattend/pkg/handlerUtil"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

func (h *AttendanceHandler) HandleQueryRecords(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	courseID := ctx.Query("course_id")
	from := ctx.Query("from")
	to := ctx.Query("to")

	if courseID == "" {
		return errHandler.Handle(ctx, requestID, attendance.ErrCourseNotFound, ctx.Path(), "query_records")
	}

	records, err := h.attendanceService.Report().RecordsByRange(c, courseID, from, to)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "query_records")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, records)
	}
}

func (h *AttendanceHandler) HandleDayStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	courseID := ctx.Query("course_id")
	day := ctx.Query("date")

	if courseID == "" {
		return errHandler.Handle(ctx, requestID, attendance.ErrCourseNotFound, ctx.Path(), "day_status")
	}
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}

	status, err := h.attendanceService.Report().DayStatus(c, courseID, day)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "day_status")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
	}
}

// HandleCloseDay reruns the absentee sweep for a course and day. It exists so
// a close that failed partway, or happened after the session was discarded,
// can still be finished.
func (h *AttendanceHandler) HandleCloseDay(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing day close request")

	var req attendance.CloseDayRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	summary, err := h.attendanceService.Ledger().CloseDay(c, req.CourseID, req.Date)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "close_day")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, summary)
	}
}
