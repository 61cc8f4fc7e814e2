package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound = services.NotFound("order not found")
	ErrNotOwner      = services.Permission("you do not own this order")
)

// fileStore deletes uploaded files that are no longer referenced.
type fileStore interface {
	Remove(publicPaths ...string)
}

type OrderService struct {
	db        *gorm.DB
	files     fileStore
	publisher events.Publisher
}

func NewOrderService(db *gorm.DB, files fileStore, publisher events.Publisher) *OrderService {
	return &OrderService{db: db, files: files, publisher: publisher}
}

// actor is the caller as currently stored; admin rights come from the users
// table, not the token.
type actor struct {
	ID       uuid.UUID
	IsAdmin  bool
	FullName string
}

func (s *OrderService) loadActor(caller identity.Caller) (*actor, error) {
	var user models.User
	if err := s.db.Select("id", "firstname", "lastname", "is_admin", "is_active").
		First(&user, "id = ?", caller.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.Permission("caller account no longer exists")
		}
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	return &actor{ID: user.ID, IsAdmin: user.IsAdmin && user.IsActive, FullName: user.FullName()}, nil
}

func (s *OrderService) ensureLocation(id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := s.db.Table(services.LocationsTable).Where("id = ?", *id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check location: %w", err)
	}
	if count == 0 {
		return services.Validation("location %s does not exist", *id)
	}
	return nil
}

// Create stores a new order. uploaded are the public paths of files saved
// for this request; any that do not make it into the order are deleted.
func (s *OrderService) Create(caller identity.Caller, in *OrderInput, uploaded []string) (order *Order, err error) {
	defer func() {
		if err != nil {
			s.files.Remove(uploaded...)
		}
	}()

	a, err := s.loadActor(caller)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text.ConfinedSpaceNameOrID) == "" {
		return nil, services.Validation("confinedSpaceNameOrId is required")
	}
	if err := s.ensureLocation(in.LocationID); err != nil {
		return nil, err
	}

	surveyors := in.Surveyors
	if len(surveyors) == 0 && a.FullName != "" {
		surveyors = []string{a.FullName}
	}
	surveyDate := in.DateOfSurvey
	if surveyDate == nil {
		now := time.Now().UTC()
		surveyDate = &now
	}
	pictures := ReconcileImages(trustedKeep(in.Keep, nil), uploaded)

	order = &Order{
		ID:                  uuid.New(),
		UserID:              a.ID,
		LocationID:          in.LocationID,
		Surveyors:           stringList(surveyors),
		SurveyText:          in.Text,
		HazardFlags:         in.Flags,
		NumberOfEntryPoints: in.NumberOfEntryPoints,
		Pictures:            stringList(pictures),
		DateOfSurvey:        surveyDate,
	}
	if err := s.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.files.Remove(unused(uploaded, pictures)...)
	s.emit(events.TopicOrderCreated, order)
	return order, nil
}

func (s *OrderService) Get(caller identity.Caller, id uuid.UUID) (*Order, error) {
	a, err := s.loadActor(caller)
	if err != nil {
		return nil, err
	}
	return s.getOwned(a, id)
}

func (s *OrderService) getOwned(a *actor, id uuid.UUID) (*Order, error) {
	var order Order
	if err := s.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !a.IsAdmin && order.UserID != a.ID {
		return nil, ErrNotOwner
	}
	return &order, nil
}

// Update applies the fields present in the input. The picture list is always
// rebuilt from the keep list and the new uploads, so a request without
// pictures and without files clears them. The order row is locked while the
// new list is computed; replaced files are deleted after commit.
func (s *OrderService) Update(caller identity.Caller, id uuid.UUID, in *OrderInput, uploaded []string) (order *Order, err error) {
	defer func() {
		if err != nil {
			s.files.Remove(uploaded...)
		}
	}()

	a, err := s.loadActor(caller)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	for _, f := range textFields {
		if in.Has(f.Name) {
			updates[f.Column] = *f.Get(&in.Text)
		}
	}
	if in.Has("confinedSpaceNameOrId") && strings.TrimSpace(in.Text.ConfinedSpaceNameOrID) == "" {
		return nil, services.Validation("confinedSpaceNameOrId cannot be empty")
	}
	for _, f := range flagFields {
		if in.Has(f.Name) {
			updates[f.Column] = *f.Get(&in.Flags)
		}
	}
	if in.Has("surveyors") {
		updates["surveyors"] = stringList(in.Surveyors)
	}
	if in.Has("numberOfEntryPoints") {
		updates["number_of_entry_points"] = in.NumberOfEntryPoints
	}
	if in.Has("locationId") {
		if err := s.ensureLocation(in.LocationID); err != nil {
			return nil, err
		}
		updates["location_id"] = in.LocationID
	}
	if in.Has("dateOfSurvey") && in.DateOfSurvey != nil {
		updates["date_of_survey"] = *in.DateOfSurvey
	}

	var pictures, replaced []string
	err = services.WithRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			existing, err := s.lockOwned(tx, a, id)
			if err != nil {
				return err
			}
			pictures = ReconcileImages(trustedKeep(in.Keep, existing.Pictures), uploaded)
			replaced = unused(existing.Pictures, pictures)
			updates["pictures"] = stringList(pictures)
			return tx.Model(&Order{}).Where("id = ?", id).Updates(updates).Error
		})
	})
	if err != nil {
		if services.IsKnown(err) {
			return nil, err
		}
		slog.Error("order update failed", "order_id", id.String(), "user_id", a.ID.String(), "action", "update_order", "error", err)
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.files.Remove(unused(uploaded, pictures)...)
	s.files.Remove(replaced...)

	order, err = s.getOwned(a, id)
	if err != nil {
		return nil, err
	}
	s.emit(events.TopicOrderUpdated, order)
	return order, nil
}

// lockOwned loads the order FOR UPDATE and checks ownership.
func (s *OrderService) lockOwned(tx *gorm.DB, a *actor, id uuid.UUID) (*Order, error) {
	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if !a.IsAdmin && order.UserID != a.ID {
		return nil, ErrNotOwner
	}
	return &order, nil
}

func (s *OrderService) Delete(caller identity.Caller, id uuid.UUID) error {
	a, err := s.loadActor(caller)
	if err != nil {
		return err
	}

	var order *Order
	err = services.WithRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			if order, err = s.lockOwned(tx, a, id); err != nil {
				return err
			}
			return tx.Delete(&Order{}, "id = ?", id).Error
		})
	})
	if err != nil {
		if services.IsKnown(err) {
			return err
		}
		slog.Error("order delete failed", "order_id", id.String(), "user_id", a.ID.String(), "action", "delete_order", "error", err)
		return fmt.Errorf("failed to delete order: %w", err)
	}
	s.files.Remove(order.Pictures...)
	s.emit(events.TopicOrderDeleted, order)
	return nil
}

// List returns every order for admins and the caller's own orders otherwise.
func (s *OrderService) List(caller identity.Caller) ([]Order, error) {
	return s.Search(caller, &SearchQuery{})
}

func (s *OrderService) Search(caller identity.Caller, q *SearchQuery) ([]Order, error) {
	a, err := s.loadActor(caller)
	if err != nil {
		return nil, err
	}

	var orders []Order
	if err := s.db.Scopes(searchScope(a, q)).
		Order("date_of_survey DESC NULLS LAST, created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}
	return orders, nil
}

func searchScope(a *actor, q *SearchQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !a.IsAdmin {
			db = db.Where("user_id = ?", a.ID)
		} else if q.UserID != nil {
			db = db.Where("user_id = ?", *q.UserID)
		}

		if q.Text != "" {
			pattern := "%" + escapeLike(q.Text) + "%"
			db = db.Where(
				"(confined_space_name_or_id ILIKE ? OR building ILIKE ? OR location_description ILIKE ? OR notes ILIKE ? OR CAST(surveyors AS text) ILIKE ?)",
				pattern, pattern, pattern, pattern, pattern,
			)
		}
		for _, f := range flagFields {
			if v, ok := q.Flags[f.Column]; ok {
				db = db.Where(f.Column+" = ?", v)
			}
		}
		if q.LocationID != nil {
			db = db.Where("location_id = ?", *q.LocationID)
		}
		if q.From != nil {
			db = db.Where("date_of_survey >= ?", *q.From)
		}
		if q.To != nil {
			db = db.Where("date_of_survey <= ?", *q.To)
		}
		return db
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *OrderService) emit(topic string, order *Order) {
	events.Emit(s.publisher, topic, events.OrderChanged{
		OrderID:      order.ID,
		UserID:       order.UserID,
		LocationID:   order.LocationID,
		PictureCount: len(order.Pictures),
		OccurredAt:   time.Now().UTC(),
	})
}

func stringList(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](v)
}
