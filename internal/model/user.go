package model

import (
	"time"
)

type UserRole string

const (
	Student    UserRole = "student"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password string   `gorm:"size:100;not null" json:"-"`
	Role     UserRole `gorm:"size:20;default:'student'" json:"role"`
	Avatar   string   `gorm:"size:255" json:"avatar"`
	Disabled bool     `gorm:"default:false" json:"disabled"`

	// 测验聚合统计
	QuizzesCompleted int     `gorm:"default:0" json:"quizzesCompleted"`
	AverageScore     float64 `gorm:"default:0" json:"averageScore"`

	StripeCustomerID string     `gorm:"size:64" json:"-"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}
