package locations

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/identity"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// technicianState is what the planner knows about one user.
type technicianState struct {
	ID        uuid.UUID
	Name      string
	IsAdmin   bool
	Locations []uuid.UUID
}

// locationState is what the planner knows about a location other than the
// target.
type locationState struct {
	ID          uuid.UUID
	Name        string
	Technicians []uuid.UUID
}

type assignmentInput struct {
	CallerID      uuid.UUID
	CallerIsAdmin bool
	LocationID    uuid.UUID
	Current       []uuid.UUID
	Requested     []uuid.UUID
	// Technicians holds every existing user named by Current, Requested or
	// the caller. Ids missing here do not exist.
	Technicians map[uuid.UUID]technicianState
	// Others holds every other location that lists, or is listed by, one of
	// the Technicians.
	Others map[uuid.UUID]locationState
}

// assignmentPlan is the complete set of writes for one assignment. Applying
// it leaves every technician in at most one location set and every location
// set mirrored by the technicians' back-references.
type assignmentPlan struct {
	SelfDetach bool
	Final      []uuid.UUID
	Added      []uuid.UUID
	Removed    []uuid.UUID
	// UserRefs is the new assigned_locations value per technician.
	UserRefs map[uuid.UUID][]uuid.UUID
	// LocationSets is the new technician set per other location whose stale
	// references get scrubbed.
	LocationSets map[uuid.UUID][]uuid.UUID
}

// planAssignment decides the outcome of an assignment without touching
// storage. It returns a services error when the request must be rejected, in
// which case nothing may be written.
func planAssignment(in assignmentInput) (*assignmentPlan, error) {
	if !in.CallerIsAdmin {
		return planSelfDetach(in)
	}

	requested := dedupeIDs(in.Requested)
	for _, id := range requested {
		tech, ok := in.Technicians[id]
		if !ok {
			return nil, services.Validation("technician %s does not exist", id)
		}
		if tech.IsAdmin {
			return nil, services.Validation("%s is an administrator and cannot be assigned to a location", tech.Name)
		}
	}

	var added, removed []uuid.UUID
	for _, id := range requested {
		if !slices.Contains(in.Current, id) {
			added = append(added, id)
		}
	}
	for _, id := range dedupeIDs(in.Current) {
		if !slices.Contains(requested, id) {
			removed = append(removed, id)
		}
	}

	for _, id := range added {
		tech := in.Technicians[id]
		for _, ref := range tech.Locations {
			if ref == in.LocationID {
				continue
			}
			other, ok := in.Others[ref]
			if ok && slices.Contains(other.Technicians, id) {
				return nil, services.AssignmentConflict(
					"technician %s is already assigned to location %s", tech.Name, other.Name)
			}
		}
	}

	plan := &assignmentPlan{
		Final:        requested,
		Added:        added,
		Removed:      removed,
		UserRefs:     map[uuid.UUID][]uuid.UUID{},
		LocationSets: map[uuid.UUID][]uuid.UUID{},
	}
	if plan.Final == nil {
		plan.Final = []uuid.UUID{}
	}

	for _, id := range requested {
		want := []uuid.UUID{in.LocationID}
		if !slices.Equal(in.Technicians[id].Locations, want) {
			plan.UserRefs[id] = want
		}
	}
	for _, id := range removed {
		tech, ok := in.Technicians[id]
		if !ok {
			continue
		}
		if slices.Contains(tech.Locations, in.LocationID) {
			plan.UserRefs[id] = without(tech.Locations, in.LocationID)
		}
	}

	// Any other location still listing a technician that now belongs here
	// is stale; the conflict check above already rejected live ones.
	for otherID, other := range in.Others {
		set := other.Technicians
		for _, id := range requested {
			set = without(set, id)
		}
		if len(set) != len(other.Technicians) {
			plan.LocationSets[otherID] = set
		}
	}
	return plan, nil
}

// planSelfDetach handles a non-admin caller, who may only remove themselves.
func planSelfDetach(in assignmentInput) (*assignmentPlan, error) {
	if len(in.Requested) != 0 || !slices.Contains(in.Current, in.CallerID) {
		return nil, services.Permission("you can only remove yourself from a location you are assigned to")
	}

	plan := &assignmentPlan{
		SelfDetach:   true,
		Final:        without(in.Current, in.CallerID),
		Removed:      []uuid.UUID{in.CallerID},
		UserRefs:     map[uuid.UUID][]uuid.UUID{},
		LocationSets: map[uuid.UUID][]uuid.UUID{},
	}
	if caller, ok := in.Technicians[in.CallerID]; ok {
		plan.UserRefs[in.CallerID] = without(caller.Locations, in.LocationID)
	}
	return plan, nil
}

// AssignTechnicians replaces the technician set of a location (admin) or
// removes the caller from it (self-detach). The read, the checks and every
// write happen in one transaction with the target location, then the users by
// id, then the other affected locations locked FOR UPDATE.
func (s *LocationService) AssignTechnicians(caller identity.Caller, locationID uuid.UUID, technicianIDs []uuid.UUID) (*AssignmentResponse, error) {
	var plan *assignmentPlan
	err := services.WithRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			in, err := loadAssignmentInput(tx, caller.ID, locationID, technicianIDs)
			if err != nil {
				return err
			}
			plan, err = planAssignment(*in)
			if err != nil {
				return err
			}
			return applyAssignment(tx, locationID, plan)
		})
	})
	if err != nil {
		if !services.IsKnown(err) {
			slog.Error("technician assignment failed", "location_id", locationID.String(), "user_id", caller.ID.String(), "action", "assign_technicians", "error", err)
		}
		return nil, err
	}

	location, err := s.Get(locationID)
	if err != nil {
		return nil, err
	}

	events.Emit(s.publisher, events.TopicTechniciansAssigned, events.TechniciansAssigned{
		LocationID:    locationID,
		ActorID:       caller.ID,
		TechnicianIDs: plan.Final,
		Added:         plan.Added,
		Removed:       plan.Removed,
		SelfDetach:    plan.SelfDetach,
		OccurredAt:    time.Now().UTC(),
	})

	added, removed := plan.Added, plan.Removed
	if added == nil {
		added = []uuid.UUID{}
	}
	if removed == nil {
		removed = []uuid.UUID{}
	}
	return &AssignmentResponse{Location: location, Added: added, Removed: removed}, nil
}

func loadAssignmentInput(tx *gorm.DB, callerID, locationID uuid.UUID, requested []uuid.UUID) (*assignmentInput, error) {
	var target Location
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&target, "id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.NotFound("location not found")
		}
		return nil, fmt.Errorf("failed to lock location: %w", err)
	}

	var callerRow technicianRow
	if err := tx.Select("id", "is_admin", "is_active").First(&callerRow, "id = ?", callerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.Permission("caller account no longer exists")
		}
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}

	in := &assignmentInput{
		CallerID:      callerID,
		CallerIsAdmin: callerRow.IsAdmin && callerRow.IsActive,
		LocationID:    locationID,
		Current:       []uuid.UUID(target.AssignedTechnicians),
		Requested:     requested,
		Technicians:   map[uuid.UUID]technicianState{},
		Others:        map[uuid.UUID]locationState{},
	}

	userIDs := dedupeIDs(append(append(slices.Clone(in.Current), requested...), callerID))
	var rows []technicianRow
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", userIDs).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to lock technicians: %w", err)
	}

	var referenced []uuid.UUID
	for _, r := range rows {
		in.Technicians[r.ID] = technicianState{
			ID:        r.ID,
			Name:      strings.TrimSpace(r.Firstname + " " + r.Lastname),
			IsAdmin:   r.IsAdmin,
			Locations: []uuid.UUID(r.AssignedLocations),
		}
		for _, ref := range r.AssignedLocations {
			if ref != locationID {
				referenced = append(referenced, ref)
			}
		}
	}

	others, err := lockOtherLocations(tx, locationID, referenced, dedupeIDs(requested))
	if err != nil {
		return nil, err
	}
	for _, o := range others {
		in.Others[o.ID] = locationState{ID: o.ID, Name: o.Name, Technicians: []uuid.UUID(o.AssignedTechnicians)}
	}
	return in, nil
}

// lockOtherLocations locks every location other than the target that is
// either referenced by a technician or lists one of the requested ids.
func lockOtherLocations(tx *gorm.DB, targetID uuid.UUID, referenced, listing []uuid.UUID) ([]Location, error) {
	var conds []string
	var args []interface{}
	if len(referenced) > 0 {
		conds = append(conds, "id IN ?")
		args = append(args, dedupeIDs(referenced))
	}
	for _, id := range listing {
		needle, err := services.JSONArrayOf(id)
		if err != nil {
			return nil, err
		}
		conds = append(conds, "assigned_technicians @> CAST(? AS jsonb)")
		args = append(args, needle)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	var others []Location
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "name", "assigned_technicians").
		Where("id <> ?", targetID).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order("id").
		Find(&others).Error; err != nil {
		return nil, fmt.Errorf("failed to lock related locations: %w", err)
	}
	return others, nil
}

func applyAssignment(tx *gorm.DB, locationID uuid.UUID, plan *assignmentPlan) error {
	if err := tx.Model(&Location{}).Where("id = ?", locationID).
		Update("assigned_technicians", idList(plan.Final)).Error; err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	for _, id := range sortedKeys(plan.UserRefs) {
		if err := tx.Model(&technicianRow{}).Where("id = ?", id).
			Update("assigned_locations", idList(plan.UserRefs[id])).Error; err != nil {
			return fmt.Errorf("failed to update technician: %w", err)
		}
	}
	for _, id := range sortedKeys(plan.LocationSets) {
		if err := tx.Model(&Location{}).Where("id = ?", id).
			Update("assigned_technicians", idList(plan.LocationSets[id])).Error; err != nil {
			return fmt.Errorf("failed to scrub location: %w", err)
		}
	}
	return nil
}

func idList(ids []uuid.UUID) datatypes.JSONSlice[uuid.UUID] {
	if ids == nil {
		return datatypes.JSONSlice[uuid.UUID]{}
	}
	return datatypes.JSONSlice[uuid.UUID](ids)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func without(ids []uuid.UUID, drop uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func sortedKeys(m map[uuid.UUID][]uuid.UUID) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return keys
}
