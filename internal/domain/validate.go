package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEvent checks a finished draft before it is published.
func ValidateEvent(e *Event, maxCategories int) error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewInputError(strings.ToLower(fe.Field()), describe(fe))
		}
		return fmt.Errorf("validate event: %w", err)
	}
	if maxCategories > 0 && len(e.Categories) > maxCategories {
		return NewInputError("categories", fmt.Sprintf("at most %d categories are allowed", maxCategories))
	}
	seen := make(map[string]struct{}, len(e.Categories))
	for _, c := range e.Categories {
		if _, dup := seen[c.Name]; dup {
			return NewInputError("categories", fmt.Sprintf("duplicate category %q", c.Name))
		}
		seen[c.Name] = struct{}{}
		if c.Capacity != nil && len(c.Members) > *c.Capacity {
			return NewInputError("categories", fmt.Sprintf("category %q is over capacity", c.Name))
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
