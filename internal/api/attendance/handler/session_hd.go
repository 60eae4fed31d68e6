package attendanceHandler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"

	"github.com/tararauzumaki/autoattend/internal/api/attendance"
	contextPkg "github.com/tararauzumaki/autoattend/pkg/context"
	"github.com/tararauzumaki/autoattend/pkg/handlerUtil"
	"github.com/tararauzumaki/autoattend/pkg/log"
)

func (h *AttendanceHandler) HandleStartSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing session start request")

	var req attendance.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	session, err := h.attendanceService.Session().StartSession(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, session)
	}
}

func (h *AttendanceHandler) HandleGetSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	session, err := h.attendanceService.Session().GetSession(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, session)
}

func (h *AttendanceHandler) HandlePauseSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if err := h.attendanceService.Session().PauseSession(c, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "pause_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, nil)
}

func (h *AttendanceHandler) HandleResumeSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if err := h.attendanceService.Session().ResumeSession(c, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "resume_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, nil)
}

func (h *AttendanceHandler) HandleStopSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if err := h.attendanceService.Session().StopSession(c, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "stop_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, nil)
}

func (h *AttendanceHandler) HandleCloseSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	summary, err := h.attendanceService.Session().CloseSession(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "close_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, summary)
	}
}

// handleCameraSocket is the per-session camera feed. The browser sends JPEG
// frames as binary messages; recognition events flow back as JSON.
func (h *AttendanceHandler) handleCameraSocket(c *websocket.Conn) {
	sessionID := c.Params("id")

	h.log.WithFields(log.Fields{
		"session_id": sessionID,
	}).Info("Camera feed WebSocket client connected")
	defer h.log.WithFields(log.Fields{
		"session_id": sessionID,
	}).Info("Camera feed WebSocket client disconnected")

	sessionSvc := h.attendanceService.Session()

	if err := sessionSvc.AttachFeed(sessionID); err != nil {
		c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer sessionSvc.DetachFeed(sessionID)

	events, err := sessionSvc.Events(sessionID)
	if err != nil {
		c.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		for event := range events {
			if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				h.log.Errorf("Error writing recognition event: %v", err)
				return
			}
		}

		// Events channel closed: the session stopped, tell the client.
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		c.WriteJSON(map[string]string{"status": "stopped"})
	}()

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 60 * time.Second

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Camera feed WebSocket error: %v", err)
			} else {
				h.log.Info("Camera feed WebSocket connection closed")
			}
			break
		}

		if messageType == websocket.BinaryMessage {
			if err := sessionSvc.OfferFrame(sessionID, message); err != nil {
				c.WriteJSON(map[string]string{"error": err.Error()})
				break
			}
		} else {
			h.log.Warnf("Received unexpected message type: %d", messageType)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
