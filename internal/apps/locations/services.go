package locations

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLocationNotFound = services.NotFound("location not found")
	ErrBuildingNotFound = services.NotFound("building not found")
	ErrNotAssigned      = services.NotFound("you are not assigned to a location")
)

type LocationService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewLocationService(db *gorm.DB, publisher events.Publisher) *LocationService {
	return &LocationService{db: db, publisher: publisher}
}

func orderedBuildings(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, created_at ASC")
}

// List returns active locations; admins may ask for inactive ones as well.
func (s *LocationService) List(includeInactive bool) ([]Location, error) {
	var locations []Location
	q := s.db.Preload("Buildings", orderedBuildings)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("name ASC").Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

func (s *LocationService) Get(id uuid.UUID) (*Location, error) {
	var location Location
	if err := s.db.Preload("Buildings", orderedBuildings).First(&location, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	return &location, nil
}

func (s *LocationService) Create(actorID uuid.UUID, req CreateLocationRequest) (*Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Validation("name is required")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, services.Validation("latitude and longitude are required")
	}
	if !validCoordinates(*req.Latitude, *req.Longitude) {
		return nil, services.Validation("coordinates are out of range")
	}

	location := Location{
		ID:                  uuid.New(),
		Name:                name,
		Address:             strings.TrimSpace(req.Address),
		Latitude:            *req.Latitude,
		Longitude:           *req.Longitude,
		Description:         req.Description,
		CreatedBy:           actorID,
		IsActive:            true,
		AssignedTechnicians: idList(nil),
		Buildings:           []Building{},
	}
	if err := s.db.Create(&location).Error; err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return &location, nil
}

func (s *LocationService) Update(id uuid.UUID, req UpdateLocationRequest) (*Location, error) {
	location, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, services.Validation("name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	lat, lng := location.Latitude, location.Longitude
	if req.Latitude != nil {
		lat = *req.Latitude
		updates["latitude"] = lat
	}
	if req.Longitude != nil {
		lng = *req.Longitude
		updates["longitude"] = lng
	}
	if !validCoordinates(lat, lng) {
		return nil, services.Validation("coordinates are out of range")
	}

	if len(updates) == 0 {
		return location, nil
	}
	if err := s.db.Model(&Location{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return s.Get(id)
}

// SetStatus sets isActive, or flips it when active is nil.
func (s *LocationService) SetStatus(id uuid.UUID, active *bool) (*Location, error) {
	location, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	next := !location.IsActive
	if active != nil {
		next = *active
	}
	if err := s.db.Model(&Location{}).Where("id = ?", id).Update("is_active", next).Error; err != nil {
		return nil, fmt.Errorf("failed to update location status: %w", err)
	}
	location.IsActive = next
	return location, nil
}

// Delete removes the location and its buildings and clears the location from
// the back-references of every technician pointing at it.
func (s *LocationService) Delete(id uuid.UUID) error {
	return services.WithRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var location Location
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").First(&location, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLocationNotFound
				}
				return err
			}

			needle, err := services.JSONArrayOf(id)
			if err != nil {
				return err
			}
			var userIDs []uuid.UUID
			if err := tx.Model(&technicianRow{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("assigned_locations @> CAST(? AS jsonb)", needle).
				Order("id").
				Pluck("id", &userIDs).Error; err != nil {
				return fmt.Errorf("failed to lock technicians: %w", err)
			}
			if len(userIDs) > 0 {
				if err := tx.Model(&technicianRow{}).
					Where("id IN ?", userIDs).
					Update("assigned_locations", gorm.Expr("assigned_locations - CAST(? AS text)", id.String())).Error; err != nil {
					return fmt.Errorf("failed to clear technician references: %w", err)
				}
			}

			return tx.Delete(&Location{}, "id = ?", id).Error
		})
	})
}

// Nearby returns active locations within radiusKm, closest first. The
// bounding box narrows the rows in SQL; haversine decides.
func (s *LocationService) Nearby(lat, lng, radiusKm float64) ([]NearbyLocation, error) {
	if !validCoordinates(lat, lng) {
		return nil, services.Validation("coordinates are out of range")
	}
	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	if radiusKm > maxRadiusKm {
		return nil, services.Validation("radiusKm must not exceed %.0f", maxRadiusKm)
	}

	box := boundingBoxAround(lat, lng, radiusKm)
	var candidates []Location
	if err := s.db.Preload("Buildings", orderedBuildings).
		Where("is_active = ?", true).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to search locations: %w", err)
	}

	return filterWithinRadius(candidates, lat, lng, radiusKm), nil
}

func filterWithinRadius(candidates []Location, lat, lng, radiusKm float64) []NearbyLocation {
	result := make([]NearbyLocation, 0, len(candidates))
	for _, loc := range candidates {
		d := haversineKm(lat, lng, loc.Latitude, loc.Longitude)
		if d <= radiusKm {
			result = append(result, NearbyLocation{Location: loc, DistanceKm: d})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].DistanceKm < result[j].DistanceKm })
	return result
}

// AssignedTo returns the location the technician currently works at.
func (s *LocationService) AssignedTo(userID uuid.UUID) (*Location, error) {
	needle, err := services.JSONArrayOf(userID)
	if err != nil {
		return nil, err
	}

	var location Location
	if err := s.db.Preload("Buildings", orderedBuildings).
		Where("assigned_technicians @> CAST(? AS jsonb)", needle).
		First(&location).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAssigned
		}
		return nil, fmt.Errorf("failed to load assigned location: %w", err)
	}
	return &location, nil
}

// --- Buildings ---

func buildingKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *LocationService) ListBuildings(locationID uuid.UUID) ([]Building, error) {
	if err := s.ensureLocation(locationID); err != nil {
		return nil, err
	}
	var buildings []Building
	if err := orderedBuildings(s.db).Where("location_id = ?", locationID).Find(&buildings).Error; err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	return buildings, nil
}

func (s *LocationService) CreateBuilding(locationID uuid.UUID, req CreateBuildingRequest) (*Building, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Validation("building name is required")
	}
	if err := s.ensureLocation(locationID); err != nil {
		return nil, err
	}
	if err := s.ensureBuildingNameFree(locationID, name, uuid.Nil); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&Building{}).Where("location_id = ?", locationID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count buildings: %w", err)
	}

	building := Building{
		ID:          uuid.New(),
		LocationID:  locationID,
		Name:        name,
		NameKey:     buildingKey(name),
		Description: req.Description,
		IsActive:    true,
		Position:    int(count),
	}
	if err := s.db.Create(&building).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return nil, duplicateBuilding(name)
		}
		return nil, fmt.Errorf("failed to create building: %w", err)
	}
	return &building, nil
}

func (s *LocationService) UpdateBuilding(locationID, buildingID uuid.UUID, req UpdateBuildingRequest) (*Building, error) {
	building, err := s.getBuilding(locationID, buildingID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, services.Validation("building name cannot be empty")
		}
		if buildingKey(name) != building.NameKey {
			if err := s.ensureBuildingNameFree(locationID, name, buildingID); err != nil {
				return nil, err
			}
		}
		updates["name"] = name
		updates["name_key"] = buildingKey(name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return building, nil
	}

	if err := s.db.Model(&Building{}).Where("id = ?", buildingID).Updates(updates).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return nil, duplicateBuilding(*req.Name)
		}
		return nil, fmt.Errorf("failed to update building: %w", err)
	}
	return s.getBuilding(locationID, buildingID)
}

func (s *LocationService) SetBuildingStatus(locationID, buildingID uuid.UUID, active *bool) (*Building, error) {
	building, err := s.getBuilding(locationID, buildingID)
	if err != nil {
		return nil, err
	}

	next := !building.IsActive
	if active != nil {
		next = *active
	}
	if err := s.db.Model(&Building{}).Where("id = ?", buildingID).Update("is_active", next).Error; err != nil {
		return nil, fmt.Errorf("failed to update building status: %w", err)
	}
	building.IsActive = next
	return building, nil
}

func (s *LocationService) DeleteBuilding(locationID, buildingID uuid.UUID) error {
	result := s.db.Where("id = ? AND location_id = ?", buildingID, locationID).Delete(&Building{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete building: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBuildingNotFound
	}
	return nil
}

func (s *LocationService) getBuilding(locationID, buildingID uuid.UUID) (*Building, error) {
	var building Building
	if err := s.db.First(&building, "id = ? AND location_id = ?", buildingID, locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBuildingNotFound
		}
		return nil, fmt.Errorf("failed to load building: %w", err)
	}
	return &building, nil
}

func (s *LocationService) ensureLocation(id uuid.UUID) error {
	var count int64
	if err := s.db.Model(&Location{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check location: %w", err)
	}
	if count == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (s *LocationService) ensureBuildingNameFree(locationID uuid.UUID, name string, exceptID uuid.UUID) error {
	var count int64
	q := s.db.Model(&Building{}).Where("location_id = ? AND name_key = ?", locationID, buildingKey(name))
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check building name: %w", err)
	}
	if count > 0 {
		return duplicateBuilding(name)
	}
	return nil
}

func duplicateBuilding(name string) error {
	return services.Conflict("building %q already exists at this location", strings.TrimSpace(name))
}
