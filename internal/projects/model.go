package projects

import (
	"strings"
	"time"
)

// Project is the tenant root: it owns spaces and the membership list that
// gates every branch operation.
type Project struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Project) TableName() string {
	return "projects"
}

// MemberRole distinguishes owners from regular members.
type MemberRole string

const (
	// RoleOwner marks the creating member of a project.
	RoleOwner MemberRole = "owner"
	// RoleMember marks an invited member.
	RoleMember MemberRole = "member"
)

// Member records one user's membership in a project.
type Member struct {
	ProjectID string     `gorm:"column:project_id;primaryKey;size:36;not null"`
	UserID    string     `gorm:"column:user_id;primaryKey;size:190;not null"`
	Role      MemberRole `gorm:"column:role;size:32;not null;default:'member'"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Member) TableName() string {
	return "project_members"
}

// Space is a container of branches under a project. Every space carries
// exactly one default branch, provisioned empty at creation time.
type Space struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	ProjectID string    `gorm:"column:project_id;size:36;not null;index"`
	Name      string    `gorm:"column:name;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Space) TableName() string {
	return "spaces"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
