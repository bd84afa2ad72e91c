package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Coordinator: manages the phase-window schedule for the tracks
	RoleCoordinator = "coordinator:"

	// Assessor
	RoleAssessor = "assessor:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles       = []string{RoleAdmin, RoleAdminOwner}
	CoordinatorRoles = []string{RoleCoordinator}
	AssessorRoles    = []string{RoleAssessor}
	StudentRoles     = []string{RoleStudent}
	AllRoles         = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Coordinators: 20 - 16
		RoleCoordinator: 16,

		// Assessors: 15 - 11
		RoleAssessor: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Assessor", Value: RoleAssessor},
		{Name: "Coordinator", Value: RoleCoordinator},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, CoordinatorRoles...)
	all = append(all, AssessorRoles...)
	all = append(all, StudentRoles...)
	return all
}

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

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	Tracks       []string  `json:"tracks"` // track eligibility hints (IDP/UROP/CAPSTONE)
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

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) hasAnyRolePrefix(prefixes ...string) bool {
	for _, role := range u.Roles {
		for _, prefix := range prefixes {
			if len(role) >= len(prefix) && role[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}

func (u *User) IsAdmin() bool       { return u.hasAnyRolePrefix(RoleAdmin) }
func (u *User) IsCoordinator() bool { return u.hasAnyRolePrefix(RoleCoordinator) }
func (u *User) IsAssessor() bool    { return u.hasAnyRolePrefix(RoleAssessor) }
func (u *User) IsStudent() bool     { return u.hasAnyRolePrefix(RoleStudent) }

// DefaultTrack returns the user's primary track eligibility hint, if any.
func (u *User) DefaultTrack() string {
	if len(u.Tracks) > 0 {
		return u.Tracks[0]
	}
	return ""
}
