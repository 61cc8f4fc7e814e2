package locations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Location struct {
	ID                  uuid.UUID                      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name                string                         `gorm:"size:200;not null" json:"name"`
	Address             string                         `gorm:"type:text" json:"address"`
	Latitude            float64                        `gorm:"index:idx_locations_coords" json:"latitude"`
	Longitude           float64                        `gorm:"index:idx_locations_coords" json:"longitude"`
	Description         string                         `gorm:"type:text" json:"description"`
	CreatedBy           uuid.UUID                      `gorm:"type:uuid;index" json:"createdBy"`
	IsActive            bool                           `gorm:"default:true;index" json:"isActive"`
	AssignedTechnicians datatypes.JSONSlice[uuid.UUID] `gorm:"type:jsonb;not null;default:'[]'" json:"assignedTechnicians"`
	Buildings           []Building                     `gorm:"constraint:OnDelete:CASCADE" json:"buildings"`
	CreatedAt           time.Time                      `json:"createdAt"`
	UpdatedAt           time.Time                      `json:"updatedAt"`
}

// Building names are unique per location ignoring case; NameKey holds the
// normalized name the unique index is built on.
type Building struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LocationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_buildings_location_name" json:"locationId"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	NameKey     string    `gorm:"size:200;not null;uniqueIndex:idx_buildings_location_name" json:"-"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"isActive"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// technicianRow is the slice of users the assignment procedure reads and
// rewrites. It maps onto the users table owned by the core module.
type technicianRow struct {
	ID                uuid.UUID                      `gorm:"type:uuid;primaryKey"`
	Firstname         string                         `gorm:"column:firstname"`
	Lastname          string                         `gorm:"column:lastname"`
	IsAdmin           bool                           `gorm:"column:is_admin"`
	IsActive          bool                           `gorm:"column:is_active"`
	AssignedLocations datatypes.JSONSlice[uuid.UUID] `gorm:"column:assigned_locations"`
}

func (technicianRow) TableName() string { return "users" }

// --- DTOs ---

type CreateLocationRequest struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Description string   `json:"description"`
}

type UpdateLocationRequest struct {
	Name        *string  `json:"name"`
	Address     *string  `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Description *string  `json:"description"`
}

// StatusRequest sets isActive explicitly; an empty body toggles it.
type StatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type CreateBuildingRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateBuildingRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type NearbyLocation struct {
	Location
	DistanceKm float64 `json:"distanceKm"`
}

type AssignmentResponse struct {
	Location *Location   `json:"location"`
	Added    []uuid.UUID `json:"added"`
	Removed  []uuid.UUID `json:"removed"`
}
