// Package validator wraps go-playground/validator behind a shared instance
// configured to report the JSON field names the API exposes.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed rule on one request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// FieldErrors collects every failed rule of a request payload.
type FieldErrors []FieldError

func (f FieldErrors) Error() string {
	if len(f) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(f))
	for i, fe := range f {
		parts[i] = fe.Field + ": " + fe.Rule
		if fe.Param != "" {
			parts[i] += "=" + fe.Param
		}
	}
	return strings.Join(parts, "; ")
}

var instance = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	// Failures must name the JSON key the client sent, not the Go field.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if tag == "" || tag == "-" {
			return field.Name
		}
		return tag
	})
	return v
})

// ValidateStruct runs the tagged rules on a request payload and returns
// FieldErrors when any fail.
func ValidateStruct(payload any) error {
	err := instance().Struct(payload)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	failures := make(FieldErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}
