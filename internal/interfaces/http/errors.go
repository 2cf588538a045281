package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-core/internal/application/dto"
	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// errorStatus traduce un error de dominio a estado HTTP y código de respuesta.
func errorStatus(err error) (int, dto.ErrorResponse) {
	var vf *domain.ValidationFailedError
	if errors.As(err, &vf) {
		details := make([]string, 0, len(vf.Errors))
		for _, e := range vf.Errors {
			details = append(details, e.Error())
		}
		return fiber.StatusConflict, dto.ErrorResponse{Code: "VALIDATION_FAILED", Message: "la operación no pasó la validación de inventario", Details: details}
	}

	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: err.Error()}
	case errors.Is(err, domain.ErrSerialCountMismatch):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: "SERIAL_COUNT_MISMATCH", Message: err.Error()}
	case errors.Is(err, domain.ErrSerialNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "SERIAL_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrSerialDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "SERIAL_DUPLICATE", Message: err.Error()}
	case errors.Is(err, domain.ErrSerialUnavailable),
		errors.Is(err, domain.ErrSerialWrongWarehouse),
		errors.Is(err, domain.ErrSerialTransition):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "SERIAL_UNAVAILABLE", Message: err.Error()}
	case errors.Is(err, domain.ErrKitTooDeep), errors.Is(err, domain.ErrKitWithoutComponents):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: "INVALID_KIT", Message: err.Error()}
	case errors.Is(err, domain.ErrInactiveWarehouse), errors.Is(err, domain.ErrProductInactive):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: "INACTIVE", Message: err.Error()}
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrWarehouseNotFound),
		errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrLotOverflow),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
}

func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	status, body := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("error no controlado")
	}
	return c.Status(status).JSON(body)
}
