package business

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
)

var (
	categoryTag  = "category"
	categoryText = "unknown category"
)

// InitValidators registers the business validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

func categoryValidation(fl validator.FieldLevel) bool {
	return IsCategory(fl.Field().String())
}
