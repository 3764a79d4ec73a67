package account

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/tasnifu/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Account is a single polymorphic identity record: the role tag determines
// which of the role-specific identifiers is set (exactly one, always
// matching Role).
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`

	StudentID string `json:"student_id,omitempty"`
	TeacherID string `json:"teacher_id,omitempty"`
	AdminID   string `json:"admin_id,omitempty"`

	Image         string    `json:"image,omitempty"`
	ContactNumber string    `json:"contact_number,omitempty"`
	Location      string    `json:"location,omitempty"`
	Birthday      time.Time `json:"birthday,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	Department    string    `json:"department,omitempty"`
	Course        string    `json:"course,omitempty"`
	Year          string    `json:"year,omitempty"`

	PasswordHash      []byte `json:"-"`
	IsProfileComplete bool   `json:"is_profile_complete"`

	// Lock is the advisory exclusive-edit flag; it is only ever toggled via
	// an atomic conditional update on the store.
	Lock bool `json:"lock"`

	LoginAttempts int       `json:"-"`
	LockUntil     time.Time `json:"-"`
	LastLogin     time.Time `json:"last_login"` // UTC

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a *Account) IsStudent() bool { return a.Role == RoleStudent }
func (a *Account) IsTeacher() bool { return a.Role == RoleTeacher }
func (a *Account) IsAdmin() bool   { return a.Role == RoleAdmin }

// RoleID returns the role-specific identifier matching Role.
func (a *Account) RoleID() string {
	switch a.Role {
	case RoleStudent:
		return a.StudentID
	case RoleTeacher:
		return a.TeacherID
	case RoleAdmin:
		return a.AdminID
	}
	return ""
}

// SetRoleID sets the identifier column matching Role and clears the others.
func (a *Account) SetRoleID(id string) {
	a.StudentID, a.TeacherID, a.AdminID = "", "", ""
	switch a.Role {
	case RoleStudent:
		a.StudentID = id
	case RoleTeacher:
		a.TeacherID = id
	case RoleAdmin:
		a.AdminID = id
	}
}

// IsLockedOut reports whether failed login attempts have the account locked at `now`.
func (a *Account) IsLockedOut(now time.Time) bool {
	return !a.LockUntil.IsZero() && a.LockUntil.After(now)
}

// CheckProfileComplete recomputes the profile-completeness flag from the
// role-relevant profile fields.
func (a *Account) CheckProfileComplete() bool {
	common := a.ContactNumber != "" && a.Location != "" && !a.Birthday.IsZero() && a.Gender != ""
	switch a.Role {
	case RoleStudent:
		return common && a.StudentID != "" && a.Course != "" && a.Year != ""
	case RoleTeacher:
		return common && a.TeacherID != "" && a.Department != ""
	case RoleAdmin:
		return true
	}
	return false
}

// NewAccount contains information needed to register a new Account.
type NewAccount struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,role"`
	StudentID       string `json:"student_id" validate:"omitempty,studentid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAccount) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Role = core.CleanString(na.Role, true /* lower */)
	na.StudentID = core.CleanString(na.StudentID)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, na.Email)
}

// UpdateProfile defines what profile information an account holder may modify.
type UpdateProfile struct {
	Name          string    `json:"name"`
	Image         string    `json:"image"`
	ContactNumber string    `json:"contact_number" validate:"omitempty,contactnum"`
	Location      string    `json:"location"`
	Birthday      time.Time `json:"birthday"`
	Gender        string    `json:"gender" validate:"omitempty,oneof=male female other"`
	Department    string    `json:"department"`
	Course        string    `json:"course"`
	Year          string    `json:"year" validate:"omitempty,oneof=1 2 3 4"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.ContactNumber = core.CleanString(up.ContactNumber)
	up.Location = core.CleanString(up.Location)
	up.Gender = core.CleanString(up.Gender, true /* lower */)
	up.Department = core.CleanString(up.Department)
	up.Course = core.CleanString(up.Course)
	up.Year = core.CleanString(up.Year)
	return validate.Struct(up)
}

type ResetAccountPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetAccountPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search            string    `query:"search"`
	Roles             []string  `query:"role"`
	IsProfileComplete *bool     `query:"is_profile_complete"`
	CreatedFrom       time.Time `query:"created_from"`
	CreatedTo         time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsProfileComplete == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
