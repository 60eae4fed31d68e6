package attendanceHandler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	attendanceService "github.com/tararauzumaki/autoattend/internal/api/attendance/service"
	"github.com/tararauzumaki/autoattend/internal/middleware"
)

type AttendanceHandler struct {
	log               *logrus.Logger
	attendanceService attendanceService.AttendanceService
	validator         *validator.Validate
	middleware        middleware.Middleware
}

func New(
	log *logrus.Logger,
	as attendanceService.AttendanceService,
	validate *validator.Validate,
	middleware middleware.Middleware) *AttendanceHandler {
	return &AttendanceHandler{
		log:               log,
		attendanceService: as,
		validator:         validate,
		middleware:        middleware,
	}
}

func (h *AttendanceHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	sessions := srv.Group("/sessions")
	sessions.Post("/", h.HandleStartSession)
	sessions.Get("/:id", h.HandleGetSession)
	sessions.Post("/:id/pause", h.HandlePauseSession)
	sessions.Post("/:id/resume", h.HandleResumeSession)
	sessions.Post("/:id/stop", h.HandleStopSession)
	sessions.Post("/:id/close", h.HandleCloseSession)
	sessions.Use("/:id/camera", wsMiddleware)
	sessions.Get("/:id/camera", websocket.New(h.handleCameraSocket))

	attendance := srv.Group("/attendance")
	attendance.Get("/", h.HandleQueryRecords)
	attendance.Get("/status", h.HandleDayStatus)
	attendance.Post("/close", h.HandleCloseDay)
}
