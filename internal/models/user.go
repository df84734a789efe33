package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of authorization tiers. Authorization is
// permission-based: a role's capabilities come from the rbac catalog,
// never from comparing tiers.
type Role string

const (
	RoleStudent      Role = "STUDENT"
	RoleMentor       Role = "MENTOR"
	RoleSeniorMentor Role = "SENIOR_MENTOR"
	RoleAdmin        Role = "ADMIN"
	RoleSuperadmin   Role = "SUPERADMIN"
)

// AllRoles lists every role; the rbac catalog is validated against it
// at startup.
var AllRoles = []Role{
	RoleStudent,
	RoleMentor,
	RoleSeniorMentor,
	RoleAdmin,
	RoleSuperadmin,
}

// roleOrder is a display weight only (student lowest). It carries no
// authorization meaning.
var roleOrder = map[Role]int{
	RoleStudent:      1,
	RoleMentor:       2,
	RoleSeniorMentor: 3,
	RoleAdmin:        4,
	RoleSuperadmin:   5,
}

// Order returns the display weight of the role, 0 for an unknown role.
func (r Role) Order() int {
	return roleOrder[r]
}

// User represents a portal user, created lazily on first OAuth login.
type User struct {
	ID         string  `gorm:"primaryKey;size:36"`
	Email      string  `gorm:"size:255;uniqueIndex;not null"`
	UPI        string  `gorm:"size:32;uniqueIndex;not null"`
	FirstName  string  `gorm:"size:64;not null"`
	LastName   string  `gorm:"size:64;not null"`
	Department string  `gorm:"size:128"`
	StudentID  *string `gorm:"size:32"`
	StaffID    *string `gorm:"size:32"`
	Role       Role    `gorm:"size:16;index;not null"`
	GroupID    *string `gorm:"size:36;index"` // mentee membership, nil when unassigned
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
