package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ecolemoderne/campus/core"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent     Role = "student"
	RoleTeacher     Role = "teacher"
	RoleSecretariat Role = "secretariat"
	RoleAdmin       Role = "admin" // Directeur/Direction
)

// AllRoles lists every valid Role.
var AllRoles = []Role{RoleStudent, RoleTeacher, RoleSecretariat, RoleAdmin}

// SelfRegisterRoles lists the roles a visitor may register with.
// Admin accounts are only ever created via the bootstrap flow or by another admin.
var SelfRegisterRoles = []Role{RoleStudent, RoleTeacher, RoleSecretariat}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Status is the closed set of account statuses.
// Teachers start out as StatusPendingValidation until the administration
// validates them; every other role starts out as StatusActive.
type Status string

const (
	StatusActive            Status = "active"
	StatusPendingValidation Status = "pending_validation"
	StatusValidated         Status = "validated"
	StatusSuspended         Status = "suspended"
)

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"` // unique
	Role         Role   `json:"role"`
	Status       Status `json:"status"`
	IsFirstAdmin bool   `json:"is_first_admin,omitempty"`
	PasswordHash []byte `json:"-"`

	// teacher-only fields
	Department     string     `json:"department,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	ValidatedBy    string     `json:"validated_by,omitempty"`
	ValidatedAt    *time.Time `json:"validated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
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

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

func (u *User) IsSecretariat() bool {
	return u.Role == RoleSecretariat
}

func (u *User) IsValidatedTeacher() bool {
	return u.Role == RoleTeacher && u.Status == StatusValidated
}

func (u *User) IsPendingTeacher() bool {
	return u.Role == RoleTeacher && u.Status == StatusPendingValidation
}

// Permissions returns the default permissions for the user's role.
func (u *User) Permissions() []string {
	switch u.Role {
	case RoleAdmin:
		return []string{"all"}
	case RoleSecretariat:
		return []string{"manage_students", "manage_enrollments", "view_reports", "manage_schedules"}
	case RoleTeacher:
		return []string{"manage_courses", "view_students", "manage_grades"}
	case RoleStudent:
		return []string{"view_courses", "submit_assignments"}
	}
	return []string{}
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,pwdminlen,pwdnospace,pwdnotallnum"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            Role   `json:"role" validate:"required,selfrole"`
	Department      string `json:"department"`
	Specialization  string `json:"specialization"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := svc.validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Email)
}

// Stats aggregates user counts for the admin dashboard.
type Stats struct {
	TotalStudents          int `json:"total_students"`
	TotalTeachers          int `json:"total_teachers"`
	ValidatedTeachers      int `json:"validated_teachers"`
	PendingTeacherRequests int `json:"pending_teacher_requests"`
	TotalSecretariat       int `json:"total_secretariat"`
	TotalAdmins            int `json:"total_admins"`
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   Role   `query:"role"`
	Status Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
