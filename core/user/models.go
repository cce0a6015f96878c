package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkadiri/kazi/core"
)

// Roles. Exactly one per account; flat, no hierarchy.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

var AllRoles = []string{RoleAdmin, RoleStudent}

// IsAllowed reports whether role is in the allowed set.
func IsAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Role         string    `json:"role"`
	StudentID    string    `json:"studentId,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// Public returns a trimmed-down copy safe to embed in API responses.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		FullName:  u.FullName,
		Email:     u.Email,
		StudentID: u.StudentID,
	}
}

// PublicUser is the account summary returned by auth endpoints.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	StudentID string `json:"studentId,omitempty"`
}

// NewUser contains information needed to create a new User.
// StudentID presence is checked at struct level: required iff the
// effective role is student (the default when Role is empty).
type NewUser struct {
	Username  string `json:"username" validate:"required,min=3,alphanum_"`
	Password  string `json:"password" validate:"required,min=6"`
	FullName  string `json:"fullName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"omitempty,role"`
	StudentID string `json:"studentId"`
}

func (nu *NewUser) Validate() error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.StudentID = core.CleanString(nu.StudentID)
	return core.Validate.Struct(nu)
}

// EffectiveRole resolves the requested role, defaulting to student.
func (nu *NewUser) EffectiveRole() string {
	if nu.Role == "" {
		return RoleStudent
	}
	return nu.Role
}

// UpdateUser defines what an admin may modify on an existing User.
// Empty fields are left untouched.
type UpdateUser struct {
	Username  string `json:"username" validate:"omitempty,min=3,alphanum_"`
	Password  string `json:"password" validate:"omitempty,min=6"`
	FullName  string `json:"fullName"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      string `json:"role" validate:"omitempty,role"`
	StudentID string `json:"studentId"`
}

func (uu *UpdateUser) Validate() error {
	uu.Username = core.CleanString(uu.Username, true /* lower */)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	uu.FullName = core.CleanString(uu.FullName)
	uu.StudentID = core.CleanString(uu.StudentID)
	return core.Validate.Struct(uu)
}

// UpdateProfile defines what users may modify on their own record.
// Role and password are never mutable through this path.
type UpdateProfile struct {
	Username  string `json:"username" validate:"omitempty,min=3,alphanum_"`
	FullName  string `json:"fullName"`
	Email     string `json:"email" validate:"omitempty,email"`
	StudentID string `json:"studentId"`
}

func (up *UpdateProfile) Validate() error {
	up.Username = core.CleanString(up.Username, true /* lower */)
	up.Email = core.CleanString(up.Email, true /* lower */)
	up.FullName = core.CleanString(up.FullName)
	up.StudentID = core.CleanString(up.StudentID)
	return core.Validate.Struct(up)
}

type ChangePassword struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (cp ChangePassword) Validate() error { return core.Validate.Struct(cp) }

type ChangeRole struct {
	Role string `json:"role" validate:"required,role"`
}

func (cr ChangeRole) Validate() error { return core.Validate.Struct(cr) }
