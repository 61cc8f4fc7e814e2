package locations

import (
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LocationsPlugin struct {
	publisher events.Publisher
}

func New(publisher events.Publisher) *LocationsPlugin {
	return &LocationsPlugin{publisher: publisher}
}

func (p *LocationsPlugin) ID() string { return "locations" }

func (p *LocationsPlugin) Models() []interface{} {
	return []interface{}{
		&Location{},
		&Building{},
	}
}

func (p *LocationsPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	svc := NewLocationService(db, p.publisher)
	handler := NewLocationHandler(svc)
	admin := middleware.AdminRequired(db)

	// Static paths before /:id
	router.Get("/", handler.List)
	router.Get("/nearby", handler.Nearby)
	router.Get("/assigned/me", handler.AssignedToMe)
	router.Post("/", admin, handler.Create)

	router.Get("/:id", handler.Get)
	router.Put("/:id", admin, handler.Update)
	router.Patch("/:id/status", admin, handler.SetStatus)
	router.Delete("/:id", admin, handler.Delete)

	// Admins overwrite, technicians may only detach themselves.
	router.Post("/:id/assign-technicians", handler.AssignTechnicians)

	// Buildings
	router.Get("/:id/buildings", handler.ListBuildings)
	router.Post("/:id/buildings", admin, handler.CreateBuilding)
	router.Put("/:id/buildings/:buildingId", admin, handler.UpdateBuilding)
	router.Patch("/:id/buildings/:buildingId/status", admin, handler.SetBuildingStatus)
	router.Delete("/:id/buildings/:buildingId", admin, handler.DeleteBuilding)
}
