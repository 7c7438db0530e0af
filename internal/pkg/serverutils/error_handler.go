package serverutils

import (
	"errors"

	"chat-lens-be/internal/constant"
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/repository/memory"
	"chat-lens-be/pkg/rag/executor"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns handler errors into the response envelope. It is
// installed as fiber's Config.ErrorHandler.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code, body := classify(err)
		if code >= fiber.StatusInternalServerError && log != nil {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err,
			})
		}
		return ctx.Status(code).JSON(body)
	}
}

func classify(err error) (int, interface{}) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return fiber.StatusBadRequest, &BaseResponse[map[string]string]{
			Success: false,
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request",
			Data:    validationErr.Fields,
		}
	}

	if errors.Is(err, memory.ErrConversationNotFound) {
		return fiber.StatusNotFound, ErrorResponse(fiber.StatusNotFound, err.Error())
	}

	if errors.Is(err, executor.ErrTurnCanceled) {
		return fiber.StatusConflict, ErrorResponse(fiber.StatusConflict, "Turn canceled")
	}
	if errors.Is(err, executor.ErrTurnFailed) {
		return fiber.StatusInternalServerError, ErrorResponse(fiber.StatusInternalServerError, constant.TurnFailedMessage)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorResponse(fiberErr.Code, fiberErr.Message)
	}

	return fiber.StatusInternalServerError, ErrorResponse(fiber.StatusInternalServerError, "Internal server error")
}
