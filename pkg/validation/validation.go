// Package validation checks service inputs with go-playground/validator and
// converts failures into VALIDATION_ERROR values.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names so details line up with payloads
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"uuid":     "must be a valid uuid",
	"min":      "must be at least ",
	"max":      "must be at most ",
	"gt":       "must be greater than ",
	"gte":      "must be at least ",
	"oneof":    "must be one of ",
}

// Struct validates dest and reports failures with details mapping each JSON
// field name to a message.
func Struct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = message(fe)
		names = append(names, fe.Field())
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "validation failed: %s", strings.Join(names, ", ")).
		WithDetails(details)
}

func message(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	if strings.HasSuffix(msg, " ") {
		return msg + fe.Param()
	}
	return msg
}

// SanitizeString trims input and caps it at maxLen bytes when maxLen > 0,
// never splitting a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	s := strings.TrimSpace(input)
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
