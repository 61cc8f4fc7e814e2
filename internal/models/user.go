package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	UserTypeAdmin = "admin"
	UserTypeUser  = "user"
)

// User is an administrator or a technician. New self-registered users stay
// inactive until an administrator approves them.
type User struct {
	ID                uuid.UUID                      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Firstname         string                         `gorm:"size:100;not null" json:"firstname"`
	Lastname          string                         `gorm:"size:100;not null" json:"lastname"`
	Email             string                         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password          string                         `gorm:"not null" json:"-"`
	UserType          string                         `gorm:"size:20;not null;default:'user'" json:"userType"`
	IsAdmin           bool                           `gorm:"default:false" json:"isAdmin"`
	IsActive          bool                           `gorm:"default:false;index" json:"isActive"`
	AssignedLocations datatypes.JSONSlice[uuid.UUID] `gorm:"type:jsonb;not null;default:'[]'" json:"assignedLocations"`
	CreatedAt         time.Time                      `json:"createdAt"`
	UpdatedAt         time.Time                      `json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.Firstname + " " + u.Lastname
}
