package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edutrack/backend/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role, expected one of Admin, Teacher, Parent, Student"

	passwordConfirmText = "passwords do not match"
)

// InitValidators registers the user validation tags on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
	core.RegisterCustomTranslation(validate, translator, "eqfield", passwordConfirmText, true)
}

// roleValidation checks that a role is one of AllRoles
func roleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).IsValid()
}
