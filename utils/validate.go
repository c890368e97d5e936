package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FormatValidationError turns binding errors into field -> message pairs.
// Errors that are not validator errors (malformed JSON) are reported under
// the "body" key.
func FormatValidationError(err error) map[string]string {
	fields := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["body"] = "malformed request body"
		return fields
	}

	for _, fe := range verrs {
		field := jsonFieldName(fe)

		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "lte":
			fields[field] = fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
		case "min":
			fields[field] = fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return fields
}

// jsonFieldName strips the root struct and embedded Customer segments from
// the namespace, e.g. "CheckoutRequest.lines[1].quantity" -> "lines[1].quantity".
func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "Customer" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

// UseJSONFieldNames makes the gin validator report fields by their json tag.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
