package httpserver

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// handleError maps service errors to HTTP statuses.
func (s *Server) handleError(c fiber.Ctx, err error) error {
	status, body := mapError(err)
	if status >= fiber.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(body)
}

func mapError(err error) (int, errorBody) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, errorBody{Error: fe.Message}
	}

	var form *service.FormError
	if errors.As(err, &form) {
		body := errorBody{Error: form.Error(), Code: form.Code}
		switch form.Code {
		case service.CodeAlreadyConfigured:
			return fiber.StatusConflict, body
		case service.CodeConnection:
			return fiber.StatusBadGateway, body
		default:
			return fiber.StatusUnprocessableEntity, body
		}
	}

	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return fiber.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, errs.ErrAlreadyExists):
		return fiber.StatusConflict, errorBody{Error: "already exists"}
	case errors.Is(err, errs.ErrUnauthorized):
		return fiber.StatusUnauthorized, errorBody{Error: "unauthorized"}
	case errors.Is(err, errs.ErrRateLimited):
		return fiber.StatusTooManyRequests, errorBody{Error: err.Error()}
	case errors.Is(err, errs.ErrAuthFailed):
		return fiber.StatusBadGateway, errorBody{Error: err.Error(), Code: "reauth_required"}
	case errors.Is(err, errs.ErrUpdateFailed):
		return fiber.StatusBadGateway, errorBody{Error: err.Error(), Code: "update_failed"}
	default:
		return fiber.StatusInternalServerError, errorBody{Error: "internal"}
	}
}
