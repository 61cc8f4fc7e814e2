package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/google/uuid"
)

type UserResponse struct {
	ID                uuid.UUID   `json:"id"`
	Firstname         string      `json:"firstname"`
	Lastname          string      `json:"lastname"`
	Email             string      `json:"email"`
	UserType          string      `json:"userType"`
	IsAdmin           bool        `json:"isAdmin"`
	IsActive          bool        `json:"isActive"`
	AssignedLocations []uuid.UUID `json:"assignedLocations"`
	CreatedAt         time.Time   `json:"createdAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	locations := []uuid.UUID(u.AssignedLocations)
	if locations == nil {
		locations = []uuid.UUID{}
	}
	return UserResponse{
		ID:                u.ID,
		Firstname:         u.Firstname,
		Lastname:          u.Lastname,
		Email:             u.Email,
		UserType:          u.UserType,
		IsAdmin:           u.IsAdmin,
		IsActive:          u.IsActive,
		AssignedLocations: locations,
		CreatedAt:         u.CreatedAt,
	}
}

func NewUserListResponse(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}

// CreateUserRequest is used by administrators; the created account is active
// unless IsActive is explicitly false.
type CreateUserRequest struct {
	Firstname       string `json:"firstname"`
	Lastname        string `json:"lastname"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	UserType        string `json:"userType"`
	IsActive        *bool  `json:"isActive"`
}

type UpdateSelfRequest struct {
	Firstname       *string `json:"firstname"`
	Lastname        *string `json:"lastname"`
	Email           *string `json:"email"`
	CurrentPassword string  `json:"currentPassword"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
}

type UpdateUserRequest struct {
	Firstname       *string `json:"firstname"`
	Lastname        *string `json:"lastname"`
	Email           *string `json:"email"`
	UserType        *string `json:"userType"`
	IsActive        *bool   `json:"isActive"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
}

type ListUsersQuery struct {
	UserType string
	Active   *bool
}
