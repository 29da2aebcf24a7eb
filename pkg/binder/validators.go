package binder

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	dateRE = regexp.MustCompile(`^\d{4}-(0[0-9]|1[0-2])-(0[0-9]|1[0-9]|2[0-9]|3[0-1])$`)
	isbnRE = regexp.MustCompile(`^(\d{9}[\dX]|\d{13})$`)
)

// dateValidator ensures the value matches the format YYYY-MM-DD or the empty
// string. Add `ne=` to the tag when the value is also required.
func dateValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return dateRE.MatchString(value)
}

// isbnValidator accepts ISBN-10 and ISBN-13, ignoring hyphens and spaces.
// Check digits aren't verified.
func isbnValidator(fl validator.FieldLevel) bool {
	value := strings.ToUpper(fl.Field().String())
	if value == "" {
		return true
	}
	value = strings.NewReplacer("-", "", " ", "").Replace(value)
	return isbnRE.MatchString(value)
}

func storageLocationValidator(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}
