package user

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/guigasprogramador/oneeduca/core"
)

// Roles
const (
	RoleAdmin     = "admin"
	RoleProfessor = "professor"
	RoleStudent   = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleProfessor, RoleStudent}

	// StaffRoles may run administrative certificate operations.
	StaffRoles = []string{RoleAdmin, RoleProfessor}

	rolePriorities = map[string]int{
		RoleAdmin:     30,
		RoleProfessor: 20,
		RoleStudent:   10,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// Profile is the learner-facing record used to resolve display names.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	FullName  string    `json:"full_name" db:"full_name"`
	Email     string    `json:"email" db:"email"`
	Roles     []string  `json:"roles" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (p Profile) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, role := range p.Roles {
			if role == want {
				return true
			}
		}
	}
	return false
}

func (p Profile) IsStaff() bool { return p.HasAnyRole(StaffRoles...) }

// DisplayName is Name, then FullName, then the capitalized local part of Email.
// It is empty when none of them is set.
func (p Profile) DisplayName() string {
	if name := core.CleanString(p.Name); name != "" {
		return name
	}
	if name := core.CleanString(p.FullName); name != "" {
		return name
	}
	return NameFromEmail(p.Email)
}

// NameFromEmail turns "maria.silva@x.com" into "Maria.silva".
func NameFromEmail(email string) string {
	local := core.CleanString(email)
	if i := strings.Index(local, "@"); i >= 0 {
		local = local[:i]
	}
	if local == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(local)
	return string(unicode.ToUpper(r)) + local[size:]
}

type NewProfile struct {
	ID       string   `json:"id" validate:"omitempty,identifier"`
	Name     string   `json:"name" validate:"required_without=FullName"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email" validate:"required,email"`
	Roles    []string `json:"roles" validate:"dive,oneof=admin professor student"`
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.FullName = core.CleanString(np.FullName)
	np.Email = core.CleanString(np.Email, true)
	return validate.Struct(np)
}
