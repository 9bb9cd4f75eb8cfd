package model

import (
	"errors"
	"strings"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and reports the first failing field as an
// apperr validation error.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Validation(fieldPath(fe.Namespace()), "failed "+fe.Tag()+" check")
	}
	return apperr.Validation("", err.Error())
}

// ValidateAll validates each element of a decoded slice.
func ValidateAll[T any](items []T) error {
	for i := range items {
		if err := Validate(&items[i]); err != nil {
			return err
		}
	}
	return nil
}

func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
