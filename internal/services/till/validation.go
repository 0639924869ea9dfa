package till

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"bar-pos/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateCategoryRequest(req *categoryRequest) error {
	return validateRequired("categoryKey", req.CategoryKey, 50)
}

func validateAddItemRequest(req *addItemRequest) error {
	return validateRequired("productId", req.ProductID, 100)
}

func validateProductFilter(f models.ProductFilter) error {
	if utf8.RuneCountInString(f.CategoryKey) > 50 {
		return ValidationError{Field: "category", Message: "category must be at most 50 characters"}
	}
	if !f.AllTypes() && !slices.Contains(models.ProductTypes, f.TypeTag) {
		return ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("type must be %q or one of %s", models.TypeAll, strings.Join(models.ProductTypes, ", ")),
		}
	}
	if utf8.RuneCountInString(f.TextQuery) > 100 {
		return ValidationError{Field: "q", Message: "search text must be at most 100 characters"}
	}
	return nil
}

func validateRequired(field, value string, maxLen int) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
		}
	}
	if utf8.RuneCountInString(value) > maxLen {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at most %d characters", field, maxLen),
		}
	}
	return nil
}
