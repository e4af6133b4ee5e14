package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors converts validator errors into field-level detail
// entries for the error envelope.
func formatValidationErrors(err error) []map[string]string {
	var details []map[string]string

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return details
	}

	for _, e := range validationErrors {
		detail := map[string]string{
			"field": e.Field(),
		}
		switch e.Tag() {
		case "required":
			detail["message"] = fmt.Sprintf("%s is required", e.Field())
		case "min":
			detail["message"] = fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
		case "max":
			detail["message"] = fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
		case "oneof":
			detail["message"] = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
		case "gte":
			detail["message"] = fmt.Sprintf("%s must be >= %s", e.Field(), e.Param())
		case "lte":
			detail["message"] = fmt.Sprintf("%s must be <= %s", e.Field(), e.Param())
		default:
			detail["message"] = fmt.Sprintf("%s is invalid", e.Field())
		}
		details = append(details, detail)
	}

	return details
}
