package thesis

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasnifu/core"
)

var (
	categoryTag  = "category"
	categoryText = "invalid category"

	statusTag  = "thesisstatus"
	statusText = "invalid status"
)

// InitValidators registers the thesis validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)

	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

// categoryValidation checks that the provided category is one of AllCategories.
func categoryValidation(fl validator.FieldLevel) bool {
	cat := fl.Field().String()
	for _, c := range AllCategories {
		if cat == c {
			return true
		}
	}
	return false
}

// statusValidation checks that the provided status is one of AllStatuses.
func statusValidation(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	for _, s := range AllStatuses {
		if status == s {
			return true
		}
	}
	return false
}
