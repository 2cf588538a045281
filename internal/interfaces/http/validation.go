package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/inventario-core/internal/application/dto"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Los errores usan el nombre JSON (o query) del campo.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBody valida el DTO y devuelve una respuesta 400 con un mensaje por campo, o nil.
func validateBody(in any) *dto.ErrorResponse {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, e.Namespace()+": "+validationMessage(e))
	}
	return &dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: details}
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "campo requerido"
	case "required_if", "required_unless":
		return "campo requerido para este tipo de movimiento"
	case "oneof":
		return "debe ser uno de: " + e.Param()
	case "gt":
		return "debe ser mayor que " + e.Param()
	case "min":
		if e.Kind() == reflect.Slice {
			return "requiere al menos " + e.Param() + " elemento(s)"
		}
		return "mínimo " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "máximo " + e.Param() + " caracteres"
		}
		return "máximo " + e.Param()
	case "datetime":
		return "fecha con formato " + e.Param()
	default:
		return "valor inválido"
	}
}
