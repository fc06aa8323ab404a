package contextutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags on v and reports every failing field
// in a single validation error.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return WrapError(err, "validation could not run")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	appErr := NewValidationError("invalid %s", strings.ToLower(verrs[0].StructNamespace()))
	appErr.Details = strings.Join(msgs, "; ")
	return appErr
}

// IsValidSubjectName checks the shape of a subject identifier (lowercase word characters).
func IsValidSubjectName(subject string) bool {
	return validate.Var(subject, "required,min=1,max=64,lowercase,excludesall= /") == nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "len":
		return fmt.Sprintf("%s must have exactly %s items", fe.Namespace(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}
