package locations

import (
	"encoding/json"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type locationService interface {
	List(includeInactive bool) ([]Location, error)
	Get(id uuid.UUID) (*Location, error)
	Create(actorID uuid.UUID, req CreateLocationRequest) (*Location, error)
	Update(id uuid.UUID, req UpdateLocationRequest) (*Location, error)
	SetStatus(id uuid.UUID, active *bool) (*Location, error)
	Delete(id uuid.UUID) error
	Nearby(lat, lng, radiusKm float64) ([]NearbyLocation, error)
	AssignedTo(userID uuid.UUID) (*Location, error)
	AssignTechnicians(caller identity.Caller, locationID uuid.UUID, technicianIDs []uuid.UUID) (*AssignmentResponse, error)
	ListBuildings(locationID uuid.UUID) ([]Building, error)
	CreateBuilding(locationID uuid.UUID, req CreateBuildingRequest) (*Building, error)
	UpdateBuilding(locationID, buildingID uuid.UUID, req UpdateBuildingRequest) (*Building, error)
	SetBuildingStatus(locationID, buildingID uuid.UUID, active *bool) (*Building, error)
	DeleteBuilding(locationID, buildingID uuid.UUID) error
}

type LocationHandler struct {
	service locationService
}

func NewLocationHandler(service locationService) *LocationHandler {
	return &LocationHandler{service: service}
}

func (h *LocationHandler) List(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}

	includeInactive := caller.IsAdmin && c.QueryBool("includeInactive", false)
	locations, err := h.service.List(includeInactive)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(locations)
}

func (h *LocationHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	location, err := h.service.Get(id)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(location)
}

func (h *LocationHandler) Create(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	location, err := h.service.Create(userID, req)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(location)
}

func (h *LocationHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	var req UpdateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	location, err := h.service.Update(id, req)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(location)
}

func (h *LocationHandler) SetStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	req, err := parseStatusRequest(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	location, err := h.service.SetStatus(id, req.IsActive)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(location)
}

func (h *LocationHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	if err := h.service.Delete(id); err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Location deleted"})
}

// Nearby expects lat and lng; radiusKm defaults to 10.
func (h *LocationHandler) Nearby(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return badRequest(c, "lat and lng are required numbers")
	}

	radius := defaultRadiusKm
	if raw := c.Query("radiusKm"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return badRequest(c, "radiusKm must be a positive number")
		}
		radius = r
	}

	locations, err := h.service.Nearby(lat, lng, radius)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(locations)
}

func (h *LocationHandler) AssignedToMe(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	location, err := h.service.AssignedTo(userID)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(location)
}

func (h *LocationHandler) AssignTechnicians(c *fiber.Ctx) error {
	caller, err := identity.GetCaller(c)
	if err != nil {
		return unauthorized(c)
	}
	locationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	ids, err := parseTechnicianIDs(c.Body())
	if err != nil {
		return handlers.WriteError(c, err)
	}

	result, err := h.service.AssignTechnicians(caller, locationID, ids)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(result)
}

// parseTechnicianIDs reads {"technicianIds": [...]}. A missing field, a
// non-array value or a malformed id is a validation error.
func parseTechnicianIDs(body []byte) ([]uuid.UUID, error) {
	var raw struct {
		TechnicianIDs json.RawMessage `json:"technicianIds"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, services.Validation("request body must be a JSON object")
	}
	if len(raw.TechnicianIDs) == 0 || string(raw.TechnicianIDs) == "null" {
		return nil, services.Validation("technicianIds is required")
	}

	var values []string
	if err := json.Unmarshal(raw.TechnicianIDs, &values); err != nil {
		return nil, services.Validation("technicianIds must be an array of ids")
	}

	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, services.Validation("invalid technician id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// --- Buildings ---

func (h *LocationHandler) ListBuildings(c *fiber.Ctx) error {
	locationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	buildings, err := h.service.ListBuildings(locationID)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(buildings)
}

func (h *LocationHandler) CreateBuilding(c *fiber.Ctx) error {
	locationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid location ID")
	}

	var req CreateBuildingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	building, err := h.service.CreateBuilding(locationID, req)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(building)
}

func (h *LocationHandler) UpdateBuilding(c *fiber.Ctx) error {
	locationID, buildingID, err := buildingParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req UpdateBuildingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	building, err := h.service.UpdateBuilding(locationID, buildingID, req)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(building)
}

func (h *LocationHandler) SetBuildingStatus(c *fiber.Ctx) error {
	locationID, buildingID, err := buildingParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	req, err := parseStatusRequest(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	building, err := h.service.SetBuildingStatus(locationID, buildingID, req.IsActive)
	if err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(building)
}

func (h *LocationHandler) DeleteBuilding(c *fiber.Ctx) error {
	locationID, buildingID, err := buildingParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.DeleteBuilding(locationID, buildingID); err != nil {
		return handlers.WriteError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "Building deleted"})
}

func buildingParams(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	locationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid location ID")
	}
	buildingID, err := uuid.Parse(c.Params("buildingId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid building ID")
	}
	return locationID, buildingID, nil
}

func parseStatusRequest(c *fiber.Ctx) (StatusRequest, error) {
	var req StatusRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	err := c.BodyParser(&req)
	return req, err
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
}
