// Package validate runs struct-tag validation on decoded request bodies and
// turns failures into field -> messages maps keyed by JSON field name.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MissingField is the message for an absent or empty required field.
const MissingField = "Missing data for required field."

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names ("log_date"), not Go names ("LogDate").
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	val.RegisterValidation("notblank", notBlank)
	return val
}

// notBlank rejects strings made only of whitespace. Nil pointers pass;
// pair with required when the field must be present.
func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() == reflect.String {
		return strings.TrimSpace(f.String()) != ""
	}
	return true
}

// Struct validates s and returns nil or a non-empty field -> messages map.
// Panics only if s is not a struct, which is a programming error.
func Struct(s any) map[string][]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		panic(fmt.Sprintf("validate.Struct: %v", err))
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], message(fe))
	}
	return fields
}

// message renders one failed tag as a user-facing sentence.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return MissingField
	case "email":
		return "Not a valid email address."
	case "gte", "min":
		if isNumeric(fe.Kind()) {
			return fmt.Sprintf("Must be greater than or equal to %s.", fe.Param())
		}
		return fmt.Sprintf("Shorter than minimum length %s.", fe.Param())
	case "lte", "max":
		if isNumeric(fe.Kind()) {
			return fmt.Sprintf("Must be less than or equal to %s.", fe.Param())
		}
		return fmt.Sprintf("Longer than maximum length %s.", fe.Param())
	case "excludesall":
		return "Contains invalid characters."
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
