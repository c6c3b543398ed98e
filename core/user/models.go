package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/edutrack/backend/core"
)

// Role determines which profile record exists for a User. It never changes after creation.
type Role string

// Roles
const (
	RoleAdmin   Role = "Admin"
	RoleTeacher Role = "Teacher"
	RoleParent  Role = "Parent"
	RoleStudent Role = "Student"
)

var (
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleParent, RoleStudent}

	Roles = []RoleInfo{
		{Name: "Administrator", Value: RoleAdmin},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Parent", Value: RoleParent},
		{Name: "Student", Value: RoleStudent},
	}

	ErrInvalidRole = errors.New("invalid role")
)

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword fails for accounts created without credentials.
func (u *User) CheckPassword(pwd string) error {
	if len(u.PasswordHash) == 0 {
		return ErrInvalidCredentials
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func (u *User) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsParent() bool  { return u.Role == RoleParent }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Profile is the role specific record sharing its User's ID.
type Profile interface {
	Role() Role
}

type (
	AdminProfile   struct{}
	TeacherProfile struct{}
	ParentProfile  struct{}
	StudentProfile struct {
		Grade    string
		ParentID null.Int64 // set once a guardian is assigned
	}
)

func (AdminProfile) Role() Role   { return RoleAdmin }
func (TeacherProfile) Role() Role { return RoleTeacher }
func (ParentProfile) Role() Role  { return RoleParent }
func (StudentProfile) Role() Role { return RoleStudent }

// NewProfile returns the empty profile variant for role.
func NewProfile(role Role) (Profile, error) {
	switch role {
	case RoleAdmin:
		return AdminProfile{}, nil
	case RoleTeacher:
		return TeacherProfile{}, nil
	case RoleParent:
		return ParentProfile{}, nil
	case RoleStudent:
		return StudentProfile{}, nil
	default:
		return nil, ErrInvalidRole
	}
}

// Student is a User joined with its student profile.
type Student struct {
	User
	Grade    string     `json:"grade"`
	ParentID null.Int64 `json:"parent_id"`
}

func (s Student) HasGuardian(parentID int64) bool {
	return s.ParentID.Valid && s.ParentID.Int64 == parentID
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string `json:"name"`
	Username string `json:"username" validate:"required,min=3,max=20,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role)
	return validate.Struct(nu)
}

// NewStudent contains information needed to enroll a Student.
// Username is generated when empty; without Password the account cannot log in until one is set.
type NewStudent struct {
	Name     string `json:"name" validate:"required"`
	Grade    string `json:"grade" validate:"required"`
	ParentID int64  `json:"parent_id" validate:"omitempty,gt=0"`
	Username string `json:"username" validate:"omitempty,min=3,max=20,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Grade = core.CleanString(ns.Grade)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required,min=6,max=72"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// NewPassword is a password chosen for an existing User.
type NewPassword struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (np NewPassword) Validate(validate *validator.Validate) error { return validate.Struct(np) }

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID              int64
	Username        string
	Email           string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search string `query:"search"`
	Roles  []Role `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type StudentFilter struct {
	ParentID int64 `query:"parent_id"`
	Grade    string `query:"grade"`
}
