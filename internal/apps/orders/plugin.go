package orders

import (
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/storage"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type OrdersPlugin struct {
	uploads   *storage.Uploads
	publisher events.Publisher
}

func New(uploads *storage.Uploads, publisher events.Publisher) *OrdersPlugin {
	return &OrdersPlugin{uploads: uploads, publisher: publisher}
}

func (p *OrdersPlugin) ID() string { return "order" }

func (p *OrdersPlugin) Models() []interface{} {
	return []interface{}{
		&Order{},
	}
}

func (p *OrdersPlugin) RegisterRoutes(router fiber.Router, db *gorm.DB, cfg *config.Config) {
	svc := NewOrderService(db, p.uploads, p.publisher)
	handler := NewOrderHandler(svc, p.uploads)

	// Static paths before /:id
	router.Post("/", handler.Create)
	router.Get("/", handler.List)
	router.Get("/search", handler.Search)
	router.Get("/export", handler.Export)
	router.Get("/:id", handler.Get)
	router.Put("/:id", handler.Update)
	router.Delete("/:id", handler.Delete)
}
