package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// 2401.01234, 2401.01234v2
	newStyleIDPattern = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	// hep-th/9901001, math.GT/0309136v1
	oldStyleIDPattern = regexp.MustCompile(`^[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("document_id", validateDocumentID)
}

func validateDocumentID(fl validator.FieldLevel) bool {
	return IsDocumentID(fl.Field().String())
}

// IsDocumentID reports whether id looks like an arXiv identifier.
func IsDocumentID(id string) bool {
	return newStyleIDPattern.MatchString(id) || oldStyleIDPattern.MatchString(id)
}
