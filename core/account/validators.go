package account

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasnifu/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	studentIDTag   = "studentid"
	studentIDText  = "student ID must be between 1 and 20 digits"
	studentIDRegex = regexp.MustCompile(`^\d{1,20}$`)

	contactNumTag   = "contactnum"
	contactNumText  = "contact number must be 11 digits"
	contactNumRegex = regexp.MustCompile(`^\d{11}$`)

	studentIDRequiredTag  = "studentid_required"
	studentIDRequiredText = "student ID is required for student accounts"
)

// InitValidators registers the account validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(studentIDTag, studentIDValidation)
	core.RegisterCustomTranslation(validate, translator, studentIDTag, studentIDText)

	_ = validate.RegisterValidation(contactNumTag, contactNumValidation)
	core.RegisterCustomTranslation(validate, translator, contactNumTag, contactNumText)

	validate.RegisterStructValidation(newAccountStructValidation, NewAccount{})
	core.RegisterCustomTranslation(validate, translator, studentIDRequiredTag, studentIDRequiredText)
}

// roleValidation checks that the provided role is one of AllRoles.
func roleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

func studentIDValidation(fl validator.FieldLevel) bool {
	return studentIDRegex.MatchString(fl.Field().String())
}

func contactNumValidation(fl validator.FieldLevel) bool {
	return contactNumRegex.MatchString(fl.Field().String())
}

// newAccountStructValidation enforces the role/identifier pairing: a student
// registration must carry a student ID.
func newAccountStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAccount)
	if !ok {
		return
	}
	if na.Role == RoleStudent && na.StudentID == "" {
		sl.ReportError(na.StudentID, "student_id", "StudentID", studentIDRequiredTag, "")
	}
}
