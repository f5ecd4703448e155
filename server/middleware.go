package server

import (
	"image"
	"time"

	"github.com/facefx/snapfilter"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id, both inbound and outbound.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(requestIDKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

func getRequestID(c *fiber.Ctx) string {
	id, ok := c.Locals(requestIDKey).(string)
	if !ok || id == "" {
		return "unknown"
	}
	return id
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// Let the error handler write the response, so the logged status is the final one.
			if herr := s.errorHandler(c, err); herr != nil {
				return herr
			}
		}

		status := c.Response().StatusCode()
		entry := s.log.WithFields(logrus.Fields{
			requestIDKey:    getRequestID(c),
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            c.IP(),
			"response_size": len(c.Response().Body()),
		})
		if err != nil {
			entry = entry.WithError(err)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("server error")
		case status >= fiber.StatusBadRequest:
			entry.Warn("client error")
		default:
			entry.Info("success")
		}
		return nil
	}
}

// statusCode maps the snapfilter errors to HTTP status codes.
func statusCode(err error) int {
	var ferr *fiber.Error
	switch {
	case errors.As(err, &ferr):
		return ferr.Code
	case errors.Is(err, snapfilter.ErrUnknownFilter),
		errors.Is(err, snapfilter.ErrChannelCount),
		errors.Is(err, snapfilter.ErrUnsupportedFormat),
		errors.Is(err, image.ErrFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, snapfilter.ErrFaceCount),
		errors.Is(err, snapfilter.ErrOutOfFrame),
		errors.Is(err, snapfilter.ErrUnknownRegion):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := statusCode(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		msg = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{
		"error":      msg,
		"request_id": getRequestID(c),
	})
}
