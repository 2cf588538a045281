package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound      = errors.New("recurso no encontrado")
	ErrInvalidInput  = errors.New("entrada inválida")
	ErrDuplicate     = errors.New("recurso duplicado")
	ErrUnauthorized  = errors.New("no autorizado")
	ErrForbidden     = errors.New("acceso denegado")
	ErrConflict      = errors.New("conflicto con el estado actual")
	ErrValidation    = errors.New("validación de inventario fallida")

	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrWarehouseNotFound = errors.New("almacén no encontrado")
	ErrInactiveWarehouse = errors.New("almacén inactivo")
	ErrProductNotFound   = errors.New("producto no encontrado")
	ErrProductInactive   = errors.New("producto inactivo")

	ErrSerialNotFound       = errors.New("número de serie no encontrado")
	ErrSerialUnavailable    = errors.New("número de serie no disponible")
	ErrSerialWrongWarehouse = errors.New("número de serie en otro almacén")
	ErrSerialDuplicate      = errors.New("número de serie duplicado")
	ErrSerialCountMismatch  = errors.New("cantidad de números de serie incorrecta")
	ErrSerialTransition     = errors.New("transición de serie inválida")

	ErrLotExhausted = errors.New("lotes agotados")
	ErrLotOverflow  = errors.New("la cantidad restante del lote excede la inicial")

	ErrKitTooDeep           = errors.New("profundidad de kit excedida o ciclo detectado")
	ErrKitWithoutComponents = errors.New("kit sin componentes")
)

// InsufficientStockError detalla la falta de existencias de un producto en un almacén.
type InsufficientStockError struct {
	ProductID   string
	WarehouseID string
	Available   int
	Requested   int
	// Cause distingue un faltante en lotes (ErrLotExhausted) del faltante en el registro de inventario.
	Cause error
}

func (e *InsufficientStockError) Error() string {
	msg := fmt.Sprintf("stock insuficiente para %s: disponible %d, solicitado %d", e.ProductID, e.Available, e.Requested)
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || (e.Cause != nil && errors.Is(e.Cause, target))
}

// SerialCountMismatchError se produce cuando la cantidad de series no coincide con la cantidad pedida.
type SerialCountMismatchError struct {
	ProductID string
	Required  int
	Provided  int
}

func (e *SerialCountMismatchError) Error() string {
	return fmt.Sprintf("el producto %s requiere %d números de serie, se proporcionaron %d", e.ProductID, e.Required, e.Provided)
}

func (e *SerialCountMismatchError) Is(target error) bool { return target == ErrSerialCountMismatch }

// SerialError asocia un número de serie a un error de serie (Kind es uno de los sentinels ErrSerial*).
type SerialError struct {
	Serial    string
	ProductID string
	Kind      error
	Detail    string
}

func (e *SerialError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("serie %s: %s (%s)", e.Serial, e.Kind.Error(), e.Detail)
	}
	return fmt.Sprintf("serie %s: %s", e.Serial, e.Kind.Error())
}

func (e *SerialError) Unwrap() error { return e.Kind }

// ValidationFailedError agrupa todos los errores encontrados al validar y bloquear una operación.
type ValidationFailedError struct {
	Errors []error
}

func (e *ValidationFailedError) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidation.Error()
	}
	return e.Errors[0].Error()
}

// Unwrap permite que errors.Is/As recorran todas las causas.
func (e *ValidationFailedError) Unwrap() []error {
	return append([]error{ErrValidation}, e.Errors...)
}

// ProgrammingError indica un defecto del llamador. Se lanza con panic, nunca se devuelve.
type ProgrammingError struct {
	Op     string
	Reason string
}

// Motivos de ProgrammingError.
const CalledOutsideTransaction = "called outside transaction"

func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("error de programación en %s: %s", e.Op, e.Reason)
}
