package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/mkadiri/kazi/core"
)

var (
	roleTag  = "role"
	roleText = "role must be one of: admin, student"

	studentIDTag  = "studentid"
	studentIDText = "studentId is required for student accounts"
)

func init() {
	_ = core.Validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(roleTag, roleText)

	core.Validate.RegisterStructValidation(newUserStructValidation, NewUser{})
	core.RegisterCustomTranslation(studentIDTag, studentIDText)
}

// roleValidation checks that the provided role is a known one.
func roleValidation(fl validator.FieldLevel) bool {
	return IsAllowed(fl.Field().String(), AllRoles)
}

// newUserStructValidation requires StudentID whenever the effective role
// is student.
func newUserStructValidation(sl validator.StructLevel) {
	nu := sl.Current().Interface().(NewUser)
	if nu.EffectiveRole() == RoleStudent && nu.StudentID == "" {
		sl.ReportError(nu.StudentID, "studentId", "StudentID", studentIDTag, "")
	}
}
