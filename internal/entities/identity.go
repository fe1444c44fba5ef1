package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of application roles.
type Role string

const (
	RoleStaff    Role = "vie-scolaire" // School staff supervisor
	RoleTeacher  Role = "professeur"
	RoleDelegate Role = "delegue" // Student delegate
)

// Roles lists every valid role.
var Roles = []Role{RoleStaff, RoleTeacher, RoleDelegate}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleTeacher, RoleDelegate:
		return true
	}
	return false
}

// Identity holds the fields shared by every per-role account table.
// Username uniqueness is scoped to (establishment, table), never across tables.
type Identity struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	EstablishmentID string    `gorm:"index:,unique,composite:establishment_username;size:36" json:"establishment_id"`
	Username        string    `gorm:"index:,unique,composite:establishment_username;size:100" json:"username"`
	PasswordHash    string    `gorm:"size:255" json:"-"`
	FirstName       string    `gorm:"size:100" json:"first_name,omitempty"`
	LastName        string    `gorm:"size:100" json:"last_name,omitempty"`
	Email           string    `gorm:"size:255" json:"email,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Profile is a unified staff profile. Identity-provider principals map onto
// profiles by ID, so a profile can carry any role.
type Profile struct {
	Identity `gorm:"embedded"`
	Role     Role `gorm:"index;size:32" json:"role"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Teacher struct {
	Identity `gorm:"embedded"`
}

func (Teacher) TableName() string {
	return "teachers"
}

func (t *Teacher) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Student struct {
	Identity `gorm:"embedded"`
}

func (Student) TableName() string {
	return "students"
}

func (s *Student) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
