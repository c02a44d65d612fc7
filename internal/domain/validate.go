package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError names the first offending field of a request, using the
// request's JSON field names (e.g. "holds[1].x").
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCreate checks that req names the problem and keeps every hold
// inside the wall image.
func ValidateCreate(req *CreateProblemRequest) error {
	return check(req)
}

// ValidateUpdate checks the fields req actually sets.
func ValidateUpdate(req *UpdateProblemRequest) error {
	return check(req)
}

func check(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	msg := "is invalid"
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "gte", "lte":
		msg = "must be between 0 and 1"
	}

	return &ValidationError{Field: field, Message: msg}
}
